package cli

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"nsg-job-manager/internal/jobview"
)

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "true", "1":
		return true, true
	case "n", "no", "false", "0", "":
		return false, true
	}
	return false, false
}

func boolToYN(v bool) string {
	return map[bool]string{true: "y", false: "n"}[v]
}

func yesNo(v bool) string {
	return map[bool]string{true: "yes", false: "no"}[v]
}

func kv(k, v string) string {
	return k + ": " + v
}

// listWindow returns the [start,end) slice of total rows to draw so that
// cursor stays roughly centered in a window of maxRows.
func listWindow(total, cursor, maxRows int) (int, int) {
	if total <= maxRows {
		return 0, total
	}
	start := clampInt(cursor-maxRows/2, 0, total-maxRows)
	return start, start + maxRows
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	switch {
	case len(r) <= limit:
		return s
	case limit == 1:
		return string(r[:1])
	}
	return string(r[:limit-1]) + "…"
}

// padRunes truncates or right-pads s to exactly width cells.
func padRunes(s string, width int) string {
	s = truncateRunes(s, width)
	if gap := width - lipgloss.Width(s); gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s
}

func wrapOrTrim(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return truncateRunes(s, width)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func defaultIfEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// displayTime renders a service timestamp in local time; unparseable values
// are shown as received.
func displayTime(raw *string) string {
	if raw == nil {
		return "-"
	}
	t, ok := jobview.ParseTimestamp(*raw)
	if !ok {
		return *raw
	}
	return t.In(time.Local).Format("2006-01-02 15:04")
}
