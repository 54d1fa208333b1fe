package cli

import (
	"os"
	"strings"
	"testing"

	"nsg-job-manager/internal/model"
	"nsg-job-manager/internal/nsg"
	"nsg-job-manager/internal/prefs"
)

func TestParseViewCriteria(t *testing.T) {
	c, err := parseViewCriteria("neuron ", " failed", "tool", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.SearchQuery != "neuron " || c.StatusFilter != model.StatusFilterFailed {
		t.Fatalf("unexpected criteria: %+v", c)
	}
	if c.SortField != model.SortTool || c.SortDirection != model.SortAsc {
		t.Fatalf("unexpected sort: %+v", c)
	}

	c, err = parseViewCriteria("", "", "", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.StatusFilter != model.StatusFilterAll || c.SortField != model.SortDateSubmitted || c.SortDirection != model.SortDesc {
		t.Fatalf("expected defaults, got %+v", c)
	}

	if _, err := parseViewCriteria("", "", "size", false); err == nil || !strings.Contains(err.Error(), "job_id") {
		t.Fatalf("expected unknown sort field error listing fields, got %v", err)
	}
}

func TestShouldSkipUpdateHint(t *testing.T) {
	t.Setenv("NSGJM_DISABLE_UPDATE_CHECK", "")
	cases := []struct {
		args []string
		want bool
	}{
		{nil, true},
		{[]string{"jobs", "list"}, false},
		{[]string{"jobs", "list", "--json"}, true},
		{[]string{"connect", "--json=true"}, true},
		{[]string{"self-update", "--check"}, true},
		{[]string{"ui"}, true},
		{[]string{"version"}, true},
	}
	for _, tc := range cases {
		if got := shouldSkipUpdateHint(tc.args); got != tc.want {
			t.Fatalf("shouldSkipUpdateHint(%v) = %v, want %v", tc.args, got, tc.want)
		}
	}

	t.Setenv("NSGJM_DISABLE_UPDATE_CHECK", "1")
	if !shouldSkipUpdateHint([]string{"jobs", "list"}) {
		t.Fatal("expected env override to skip the hint")
	}
}

func TestParseOnOff(t *testing.T) {
	for _, raw := range []string{"on", "YES", " true "} {
		if v, ok := parseOnOff(raw); !ok || !v {
			t.Fatalf("expected %q to parse as on", raw)
		}
	}
	if v, ok := parseOnOff("off"); !ok || v {
		t.Fatal("expected off")
	}
	if _, ok := parseOnOff("maybe"); ok {
		t.Fatal("expected maybe to be rejected")
	}
}

func TestApplySettingsPersistsChanges(t *testing.T) {
	c := newTestCoordinator(t, &stubService{})
	dir := t.TempDir()

	err := applySettings(c, settingsChanges{
		Theme:       "dark",
		AutoRefresh: "off",
		Interval:    5,
		DownloadDir: dir,
		Language:    "sv",
		ZoomIn:      true,
	})
	if err != nil {
		t.Fatalf("apply settings: %v", err)
	}
	p := c.Preferences()
	if p.Theme != prefs.ThemeDark {
		t.Fatalf("expected dark theme, got %q", p.Theme)
	}
	if p.AutoRefresh {
		t.Fatal("expected auto-refresh off")
	}
	if p.RefreshIntervalSeconds != prefs.MinRefreshIntervalSeconds {
		t.Fatalf("expected interval clamped to %d, got %d", prefs.MinRefreshIntervalSeconds, p.RefreshIntervalSeconds)
	}
	if p.ResolvedDownloadDir() != dir {
		t.Fatalf("expected download dir %s, got %s", dir, p.ResolvedDownloadDir())
	}
	if p.CollateLanguage != "sv" {
		t.Fatalf("expected sv, got %q", p.CollateLanguage)
	}
	if p.Zoom < 1.05 || p.Zoom > 1.15 {
		t.Fatalf("expected zoom 1.1, got %v", p.Zoom)
	}
}

func TestApplySettingsRejectsBadInput(t *testing.T) {
	c := newTestCoordinator(t, &stubService{})
	if err := applySettings(c, settingsChanges{AutoRefresh: "sometimes"}); err == nil {
		t.Fatal("expected invalid auto-refresh error")
	}
	if err := applySettings(c, settingsChanges{Interval: -1}); err == nil {
		t.Fatal("expected negative interval error")
	}
	if err := applySettings(c, settingsChanges{Language: "not a tag!"}); err == nil {
		t.Fatal("expected invalid language error")
	}
	missing := t.TempDir() + string(os.PathSeparator) + "missing"
	if err := applySettings(c, settingsChanges{DownloadDir: missing}); err == nil {
		t.Fatal("expected missing download dir error")
	}
}

func TestSettingsFormOnlyReportsChangedPaths(t *testing.T) {
	p := prefs.Defaults()
	f := newSettingsForm(p, 80)
	ch, err := f.toSettingsChanges(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.DownloadDir != "" || ch.Language != "" {
		t.Fatalf("unchanged fields should be empty, got %+v", ch)
	}
	if ch.AutoRefresh != "on" && ch.AutoRefresh != "off" {
		t.Fatalf("unexpected auto-refresh value %q", ch.AutoRefresh)
	}

	f.Fields[findFieldIndexByKey(f, "interval")].Value = "abc"
	if _, err := f.toSettingsChanges(p); err == nil {
		t.Fatal("expected integer validation error")
	}
}

func TestDisplayIdentityMasksAppKey(t *testing.T) {
	t.Setenv("SHOWCASE_MODE", "")
	user, key := displayIdentity(nsg.Credentials{Username: "alice", AppKey: "ABCDEFGH1234"})
	if user != "alice" {
		t.Fatalf("unexpected user %q", user)
	}
	if strings.Contains(key, "ABCDEFGH") {
		t.Fatalf("app key should be masked, got %q", key)
	}
}

func TestJobURLArg(t *testing.T) {
	if got, err := jobURLArg("", []string{"https://nsg.test/job/a"}); err != nil || got != "https://nsg.test/job/a" {
		t.Fatalf("unexpected positional result %q %v", got, err)
	}
	if got, err := jobURLArg(" https://nsg.test/job/b ", nil); err != nil || got != "https://nsg.test/job/b" {
		t.Fatalf("unexpected flag result %q %v", got, err)
	}
	if _, err := jobURLArg("", nil); err == nil {
		t.Fatal("expected missing job url error")
	}
}
