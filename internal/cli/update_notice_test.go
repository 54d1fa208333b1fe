package cli

import (
	"context"
	"testing"

	"nsg-job-manager/internal/version"
)

func withUpdateHintEnv(t *testing.T, current string, latest func(context.Context) (string, error)) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("NSGJM_DISABLE_UPDATE_CHECK", "")

	prevVersion := version.Value
	prevLatest := latestTagFunc
	version.Value = current
	latestTagFunc = latest
	t.Cleanup(func() {
		version.Value = prevVersion
		latestTagFunc = prevLatest
	})
}

func TestUpdateHintCachesLatestTagAndNotifiesOnce(t *testing.T) {
	calls := 0
	withUpdateHintEnv(t, "v1.0.0", func(context.Context) (string, error) {
		calls++
		return "v1.2.0", nil
	})

	maybePrintUpdateHint([]string{"jobs", "list"})
	path, err := updateNoticeCachePath()
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	cache := loadUpdateNoticeCache(path)
	if cache.LatestTag != "v1.2.0" {
		t.Fatalf("expected cached tag v1.2.0, got %q", cache.LatestTag)
	}
	if cache.LastNotified.IsZero() {
		t.Fatalf("expected notification timestamp, got %v", cache.LastNotified)
	}

	maybePrintUpdateHint([]string{"jobs", "list"})
	if calls != 1 {
		t.Fatalf("expected one remote lookup within the check interval, got %d", calls)
	}
}

func TestUpdateHintSkipsWhenCurrentIsNewest(t *testing.T) {
	withUpdateHintEnv(t, "v2.0.0", func(context.Context) (string, error) {
		return "v1.9.9", nil
	})

	maybePrintUpdateHint([]string{"settings", "show"})
	path, err := updateNoticeCachePath()
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	cache := loadUpdateNoticeCache(path)
	if !cache.LastNotified.IsZero() {
		t.Fatalf("did not expect a notification, got %v", cache.LastNotified)
	}
}
