package prefs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewStore(filepath.Join(t.TempDir(), "preferences.json"), logger)
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Theme != ThemeSystem || p.Zoom != DefaultZoom || !p.AutoRefresh || p.RefreshIntervalSeconds != DefaultRefreshIntervalSeconds {
		t.Fatalf("unexpected defaults: %#v", p)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte(`{"theme":"dark"}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Theme != ThemeDark || !p.AutoRefresh || p.Zoom != DefaultZoom {
		t.Fatalf("unexpected prefs: %#v", p)
	}
}

func TestNormalizeClampsInvalidValues(t *testing.T) {
	p := Normalize(Preferences{Theme: "neon", Zoom: 9, RefreshIntervalSeconds: 3, CollateLanguage: "!!"})
	if p.Theme != ThemeSystem {
		t.Fatalf("expected system theme, got %q", p.Theme)
	}
	if p.Zoom != MaxZoom {
		t.Fatalf("expected zoom clamp to %v, got %v", MaxZoom, p.Zoom)
	}
	if p.RefreshIntervalSeconds != MinRefreshIntervalSeconds {
		t.Fatalf("expected interval clamp, got %d", p.RefreshIntervalSeconds)
	}
	if p.CollateLanguage != DefaultCollateLanguage {
		t.Fatalf("expected default language, got %q", p.CollateLanguage)
	}
}

func TestZoomStepsAndBounds(t *testing.T) {
	s := newTestStore(t)
	p, err := s.ZoomIn()
	if err != nil {
		t.Fatalf("zoom in: %v", err)
	}
	if p.Zoom != 1.1 {
		t.Fatalf("expected 1.1, got %v", p.Zoom)
	}
	for i := 0; i < 40; i++ {
		p, _ = s.ZoomIn()
	}
	if p.Zoom != MaxZoom {
		t.Fatalf("expected max zoom, got %v", p.Zoom)
	}
	for i := 0; i < 40; i++ {
		p, _ = s.ZoomOut()
	}
	if p.Zoom != MinZoom {
		t.Fatalf("expected min zoom, got %v", p.Zoom)
	}
	p, _ = s.ResetZoom()
	if p.Zoom != DefaultZoom {
		t.Fatalf("expected reset zoom, got %v", p.Zoom)
	}
}

func TestSetDownloadDirValidates(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	missing := filepath.Join(dir, "nope")
	if _, err := s.SetDownloadDir(missing); err == nil || !strings.Contains(err.Error(), "Directory does not exist") {
		t.Fatalf("expected missing dir error, got %v", err)
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := s.SetDownloadDir(file); err == nil || !strings.Contains(err.Error(), "Path is not a directory") {
		t.Fatalf("expected not-a-directory error, got %v", err)
	}

	p, err := s.SetDownloadDir(dir)
	if err != nil {
		t.Fatalf("set dir: %v", err)
	}
	if p.ResolvedDownloadDir() != dir {
		t.Fatalf("expected %s, got %s", dir, p.ResolvedDownloadDir())
	}

	reloaded, err := s.Load()
	if err != nil || reloaded.DownloadDir != dir {
		t.Fatalf("expected persisted dir, got %#v %v", reloaded, err)
	}
}

func TestSetThemeRejectsUnknown(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SetTheme("sepia"); err == nil {
		t.Fatalf("expected unknown theme error")
	}
	p, err := s.SetTheme("Light")
	if err != nil || p.Theme != ThemeLight {
		t.Fatalf("expected light theme, got %#v %v", p, err)
	}
}

func TestSetAutoRefreshPersists(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SetAutoRefresh(false, 120); err != nil {
		t.Fatalf("set auto refresh: %v", err)
	}
	p, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.AutoRefresh || p.RefreshIntervalSeconds != 120 {
		t.Fatalf("unexpected prefs: %#v", p)
	}
}

func TestConfigDirOverride(t *testing.T) {
	t.Setenv("NSGJM_CONFIG_DIR", "/tmp/nsgjm-test")
	dir, err := ConfigDir()
	if err != nil || dir != "/tmp/nsgjm-test" {
		t.Fatalf("unexpected config dir %q %v", dir, err)
	}
}

func TestSetCollateLanguage(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SetCollateLanguage("not a tag!"); err == nil {
		t.Fatalf("expected invalid tag error")
	}
	p, err := s.SetCollateLanguage("sv")
	if err != nil {
		t.Fatalf("set language: %v", err)
	}
	if p.CollateLanguage != "sv" || p.Language().String() != "sv" {
		t.Fatalf("unexpected language %#v", p)
	}
}
