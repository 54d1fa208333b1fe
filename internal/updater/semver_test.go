package updater

import "testing"

func TestIsNewerVersion(t *testing.T) {
	cases := []struct {
		candidate string
		current   string
		want      bool
	}{
		{"v1.2.0", "v1.1.9", true},
		{"1.2.0", "v1.2.0", false},
		{"v1.2.0", "v1.2.0-rc.1", true},
		{"v1.2.0-rc.2", "v1.2.0-rc.1", true},
		{"v1.2.0-rc.10", "v1.2.0-rc.2", true},
		{"v1.2.0-rc.1", "v1.2.0-rc", true},
		{"v1.2.0-beta", "v1.2.0-1", true},
		{"v1.2.0+build.7", "v1.2.0", false},
		{"v1.10.0", "v1.9.3", true},
		{"v0.9.0", "v1.0.0", false},
	}
	for _, tc := range cases {
		got, err := IsNewerVersion(tc.candidate, tc.current)
		if err != nil {
			t.Fatalf("%s vs %s: %v", tc.candidate, tc.current, err)
		}
		if got != tc.want {
			t.Fatalf("%s vs %s: expected %v", tc.candidate, tc.current, tc.want)
		}
	}
}

func TestIsNewerVersionRejectsMalformedTags(t *testing.T) {
	for _, bad := range []string{"dev", "v1.2", "v1.2.x", "v1.2.3-", ""} {
		if _, err := IsNewerVersion("v1.0.0", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNormalizeVersionTag(t *testing.T) {
	if got := NormalizeVersionTag(" 1.4.0 "); got != "v1.4.0" {
		t.Fatalf("unexpected %q", got)
	}
	if got := NormalizeVersionTag("v2.0.0"); got != "v2.0.0" {
		t.Fatalf("unexpected %q", got)
	}
	if got := NormalizeVersionTag(""); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
