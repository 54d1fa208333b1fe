// Package prefs is the single settings object of the client: theme, zoom,
// auto-refresh and the download directory. It is loaded once, passed to the
// components that need it, and written back atomically on every change.
package prefs

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"nsg-job-manager/internal/filestore"
)

type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

const (
	DefaultZoom                   = 1.0
	MinZoom                       = 0.5
	MaxZoom                       = 3.0
	ZoomStep                      = 0.1
	DefaultRefreshIntervalSeconds = 60
	MinRefreshIntervalSeconds     = 10
	DefaultCollateLanguage        = "en"

	preferencesFile = "preferences.json"
)

type Preferences struct {
	Theme                  Theme   `json:"theme"`
	Zoom                   float64 `json:"zoom"`
	AutoRefresh            bool    `json:"auto_refresh"`
	RefreshIntervalSeconds int     `json:"refresh_interval_seconds"`
	DownloadDir            string  `json:"download_dir,omitempty"`
	CollateLanguage        string  `json:"collate_language,omitempty"`
	UpdatedAt              string  `json:"updated_at,omitempty"`
}

func Defaults() Preferences {
	return Preferences{
		Theme:                  ThemeSystem,
		Zoom:                   DefaultZoom,
		AutoRefresh:            true,
		RefreshIntervalSeconds: DefaultRefreshIntervalSeconds,
		CollateLanguage:        DefaultCollateLanguage,
	}
}

func (p Preferences) RefreshInterval() time.Duration {
	return time.Duration(p.RefreshIntervalSeconds) * time.Second
}

// Language returns the collation language, English when unparseable.
func (p Preferences) Language() language.Tag {
	tag, err := language.Parse(strings.TrimSpace(p.CollateLanguage))
	if err != nil {
		return language.English
	}
	return tag
}

// ResolvedDownloadDir falls back to ~/Downloads, then the home directory.
func (p Preferences) ResolvedDownloadDir() string {
	if dir := strings.TrimSpace(p.DownloadDir); dir != "" {
		return dir
	}
	return DefaultDownloadDir()
}

func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func Normalize(raw Preferences) Preferences {
	norm := raw
	norm.Theme = NormalizeTheme(string(norm.Theme))
	norm.Zoom = clampZoom(norm.Zoom)
	if norm.RefreshIntervalSeconds <= 0 {
		norm.RefreshIntervalSeconds = DefaultRefreshIntervalSeconds
	}
	if norm.RefreshIntervalSeconds < MinRefreshIntervalSeconds {
		norm.RefreshIntervalSeconds = MinRefreshIntervalSeconds
	}
	norm.DownloadDir = strings.TrimSpace(norm.DownloadDir)
	if _, err := language.Parse(strings.TrimSpace(norm.CollateLanguage)); err != nil {
		norm.CollateLanguage = DefaultCollateLanguage
	}
	return norm
}

func NormalizeTheme(raw string) Theme {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case ThemeLight:
		return ThemeLight
	case ThemeDark:
		return ThemeDark
	default:
		return ThemeSystem
	}
}

func ParseTheme(raw string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case ThemeSystem, ThemeLight, ThemeDark:
		return Theme(strings.ToLower(strings.TrimSpace(raw))), nil
	default:
		return "", fmt.Errorf("unknown theme %q (use system, light or dark)", raw)
	}
}

func clampZoom(z float64) float64 {
	if z <= 0 || math.IsNaN(z) {
		return DefaultZoom
	}
	z = math.Round(z*10) / 10
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// ValidateDownloadDir requires an existing directory.
func ValidateDownloadDir(dir string) (string, error) {
	dir = expandHome(strings.TrimSpace(dir))
	if dir == "" {
		return "", fmt.Errorf("download directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("Directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("Path is not a directory: %s", dir)
	}
	return dir, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// ConfigDir honors NSGJM_CONFIG_DIR, then the OS user config directory.
func ConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("NSGJM_CONFIG_DIR")); override != "" {
		return override, nil
	}
	root, err := os.UserConfigDir()
	if err != nil || strings.TrimSpace(root) == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", fmt.Errorf("resolve config directory: %w", homeErr)
		}
		root = filepath.Join(home, ".config")
	}
	return filepath.Join(root, "nsg-job-manager"), nil
}

func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, preferencesFile), nil
}

// Store serializes reads and writes of the preferences file.
type Store struct {
	mu     sync.Mutex
	path   string
	logger logrus.FieldLogger
}

func NewStore(path string, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string { return s.path }

// Load returns defaults when the file is missing. Keys absent from the file
// keep their default value.
func (s *Store) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Preferences, error) {
	p := Defaults()
	if err := filestore.ReadJSON(s.path, &p); err != nil {
		if filestore.IsNotExist(err) {
			return Defaults(), nil
		}
		return Preferences{}, err
	}
	return Normalize(p), nil
}

func (s *Store) Save(p Preferences) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(p)
}

func (s *Store) saveLocked(p Preferences) (Preferences, error) {
	p = Normalize(p)
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := filestore.WriteJSON(s.path, p); err != nil {
		return Preferences{}, err
	}
	s.logger.WithField("path", s.path).Debug("preferences saved")
	return p, nil
}

// Update applies fn to the current preferences and saves the result. A
// non-nil error from fn aborts without writing.
func (s *Store) Update(fn func(*Preferences) error) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.loadLocked()
	if err != nil {
		return Preferences{}, err
	}
	if err := fn(&p); err != nil {
		return Preferences{}, err
	}
	return s.saveLocked(p)
}

func (s *Store) SetTheme(raw string) (Preferences, error) {
	theme, err := ParseTheme(raw)
	if err != nil {
		return Preferences{}, err
	}
	return s.Update(func(p *Preferences) error {
		p.Theme = theme
		return nil
	})
}

func (s *Store) SetAutoRefresh(enabled bool, intervalSeconds int) (Preferences, error) {
	return s.Update(func(p *Preferences) error {
		p.AutoRefresh = enabled
		if intervalSeconds > 0 {
			p.RefreshIntervalSeconds = intervalSeconds
		}
		return nil
	})
}

func (s *Store) SetDownloadDir(dir string) (Preferences, error) {
	valid, err := ValidateDownloadDir(dir)
	if err != nil {
		return Preferences{}, err
	}
	return s.Update(func(p *Preferences) error {
		p.DownloadDir = valid
		return nil
	})
}

func (s *Store) ZoomIn() (Preferences, error) {
	return s.Update(func(p *Preferences) error {
		p.Zoom = clampZoom(p.Zoom + ZoomStep)
		return nil
	})
}

func (s *Store) ZoomOut() (Preferences, error) {
	return s.Update(func(p *Preferences) error {
		p.Zoom = clampZoom(p.Zoom - ZoomStep)
		return nil
	})
}

func (s *Store) ResetZoom() (Preferences, error) {
	return s.Update(func(p *Preferences) error {
		p.Zoom = DefaultZoom
		return nil
	})
}

// SetCollateLanguage sets the BCP 47 tag used to order text columns.
func (s *Store) SetCollateLanguage(raw string) (Preferences, error) {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Preferences{}, fmt.Errorf("invalid language tag %q: %w", raw, err)
	}
	return s.Update(func(p *Preferences) error {
		p.CollateLanguage = tag.String()
		return nil
	})
}
