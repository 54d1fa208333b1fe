package cli

import "testing"

func TestListWindowKeepsCursorVisible(t *testing.T) {
	cases := []struct {
		total, cursor, rows int
		start, end          int
	}{
		{5, 4, 10, 0, 5},
		{100, 0, 10, 0, 10},
		{100, 50, 10, 45, 55},
		{100, 99, 10, 90, 100},
	}
	for _, tc := range cases {
		start, end := listWindow(tc.total, tc.cursor, tc.rows)
		if start != tc.start || end != tc.end {
			t.Fatalf("listWindow(%d,%d,%d) = [%d,%d), want [%d,%d)", tc.total, tc.cursor, tc.rows, start, end, tc.start, tc.end)
		}
	}
}

func TestTruncateAndPadRunes(t *testing.T) {
	if got := truncateRunes("NEURON_EXPANSE", 7); got != "NEURON…" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncateRunes("abc", 0); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := padRunes("ab", 4); got != "ab  " {
		t.Fatalf("unexpected padding %q", got)
	}
}

func TestDisplayTime(t *testing.T) {
	if got := displayTime(nil); got != "-" {
		t.Fatalf("expected dash for missing time, got %q", got)
	}
	raw := "not a date"
	if got := displayTime(&raw); got != raw {
		t.Fatalf("expected raw value back, got %q", got)
	}
}
