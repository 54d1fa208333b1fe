package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/filestore"
	"nsg-job-manager/internal/updater"
	"nsg-job-manager/internal/version"
)

const (
	updateCheckInterval      = 24 * time.Hour
	updateNotificationWindow = 12 * time.Hour
	updateCheckTimeout       = 2 * time.Second
)

// updateNoticeCache remembers the last release lookup so one-shot commands
// hit the network at most once a day.
type updateNoticeCache struct {
	LastChecked  time.Time `json:"last_checked"`
	LatestTag    string    `json:"latest_tag,omitempty"`
	LastNotified time.Time `json:"last_notified"`
}

func (c updateNoticeCache) stale(now time.Time) bool {
	return c.LatestTag == "" || c.LastChecked.IsZero() || now.Sub(c.LastChecked) >= updateCheckInterval
}

func (c updateNoticeCache) recentlyNotified(now time.Time) bool {
	return !c.LastNotified.IsZero() && now.Sub(c.LastNotified) < updateNotificationWindow
}

// latestTagFunc is replaced in tests.
var latestTagFunc = func(ctx context.Context) (string, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	backend := newUpdateBackend(logger)
	backend.HTTPClient = &http.Client{Timeout: updateCheckTimeout}
	return backend.LatestTag(ctx)
}

// maybePrintUpdateHint prints a one-line notice on stderr when a newer
// release exists. Every failure is silent.
func maybePrintUpdateHint(args []string) {
	if shouldSkipUpdateHint(args) {
		return
	}
	current := updater.NormalizeVersionTag(version.Value)
	if current == "" {
		return
	}
	cachePath, err := updateNoticeCachePath()
	if err != nil {
		return
	}

	cache := loadUpdateNoticeCache(cachePath)
	now := time.Now().UTC()
	if cache.stale(now) {
		ctx, cancel := context.WithTimeout(context.Background(), updateCheckTimeout)
		latest, err := latestTagFunc(ctx)
		cancel()
		if err == nil && strings.TrimSpace(latest) != "" {
			cache.LatestTag = strings.TrimSpace(latest)
			cache.LastChecked = now
			saveUpdateNoticeCache(cachePath, cache)
		}
	}
	if cache.LatestTag == "" || cache.recentlyNotified(now) {
		return
	}
	if newer, err := updater.IsNewerVersion(cache.LatestTag, current); err != nil || !newer {
		return
	}

	fmt.Fprintf(os.Stderr, "update available: %s (current %s). Run: nsg-job-manager self-update\n", cache.LatestTag, current)
	cache.LastNotified = now
	saveUpdateNoticeCache(cachePath, cache)
}

var updateHintQuietCommands = []string{"self-update", "ui", "version"}

func shouldSkipUpdateHint(args []string) bool {
	if strings.TrimSpace(os.Getenv("NSGJM_DISABLE_UPDATE_CHECK")) == "1" {
		return true
	}
	if len(args) == 0 || slices.Contains(updateHintQuietCommands, args[0]) {
		return true
	}
	return slices.ContainsFunc(args, func(arg string) bool {
		arg = strings.TrimSpace(arg)
		return arg == "--json" || strings.HasPrefix(arg, "--json=")
	})
}

func updateNoticeCachePath() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "update-check.json"), nil
}

func loadUpdateNoticeCache(cachePath string) updateNoticeCache {
	var cache updateNoticeCache
	if err := filestore.ReadJSON(cachePath, &cache); err != nil {
		return updateNoticeCache{}
	}
	return cache
}

func saveUpdateNoticeCache(cachePath string, cache updateNoticeCache) {
	_ = filestore.WriteJSON(cachePath, cache)
}
