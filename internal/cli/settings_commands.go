package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"nsg-job-manager/internal/coordinator"
	"nsg-job-manager/internal/nsg"
	"nsg-job-manager/internal/prefs"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

type settingsView struct {
	Path            string            `json:"path"`
	Preferences     prefs.Preferences `json:"preferences"`
	DownloadDir     string            `json:"resolved_download_dir"`
	CredentialsPath string            `json:"credentials_path"`
	Username        string            `json:"username,omitempty"`
	AppKey          string            `json:"app_key,omitempty"`
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	prefsPath := fs.String("prefs", "", "preferences file (defaults to the user config directory)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(appOptions{PrefsPath: *prefsPath})
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.coord.Preferences()
	view := settingsView{
		Path:            resolvedPrefsPath(*prefsPath),
		Preferences:     p,
		DownloadDir:     p.ResolvedDownloadDir(),
		CredentialsPath: a.coord.CredentialsLocation(),
	}
	if creds, err := a.coord.SavedCredentials(); err == nil {
		view.Username, view.AppKey = displayIdentity(creds)
	} else if !errors.Is(err, nsg.ErrNoCredentials) {
		return err
	}
	if *jsonOut {
		return printJSON(view)
	}
	return printSettingsTable(view)
}

// displayIdentity masks the app key and honors showcase mode.
func displayIdentity(creds nsg.Credentials) (string, string) {
	if nsg.ShowcaseEnabled() {
		s := nsg.NewShowcase()
		return s.Username(creds.Username), s.AppKey(creds.AppKey)
	}
	key := creds.AppKey
	if len(key) > 4 {
		key = strings.Repeat("*", len(key)-4) + key[len(key)-4:]
	}
	return creds.Username, key
}

func printSettingsTable(v settingsView) error {
	return printTable(os.Stdout, []string{"Setting", "Value"}, [][]string{
		{"preferences", v.Path},
		{"theme", string(v.Preferences.Theme)},
		{"zoom", strconv.FormatFloat(v.Preferences.Zoom, 'f', 1, 64)},
		{"auto_refresh", yesNo(v.Preferences.AutoRefresh)},
		{"refresh_interval_s", strconv.Itoa(v.Preferences.RefreshIntervalSeconds)},
		{"download_dir", v.DownloadDir},
		{"collate_language", v.Preferences.CollateLanguage},
		{"credentials", v.CredentialsPath},
		{"username", orDash(v.Username)},
		{"app_key", orDash(v.AppKey)},
	})
}

func resolvedPrefsPath(raw string) string {
	if p := strings.TrimSpace(raw); p != "" {
		return p
	}
	p, err := prefs.DefaultPath()
	if err != nil {
		return ""
	}
	return p
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	prefsPath := fs.String("prefs", "", "preferences file (defaults to the user config directory)")
	theme := fs.String("theme", "", "system|light|dark (empty keeps current)")
	autoRefresh := fs.String("auto-refresh", "", "on|off (empty keeps current)")
	interval := fs.Int("interval", 0, "auto-refresh interval in seconds (min 10, 0 keeps current)")
	downloadDir := fs.String("download-dir", "", "existing directory for downloaded results")
	lang := fs.String("language", "", "BCP 47 tag used to order text columns, e.g. en or sv")
	zoomIn := fs.Bool("zoom-in", false, "increase zoom by one step")
	zoomOut := fs.Bool("zoom-out", false, "decrease zoom by one step")
	resetZoom := fs.Bool("reset-zoom", false, "reset zoom to 1.0")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	a, err := openApp(appOptions{PrefsPath: *prefsPath, Lock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := applySettings(a.coord, settingsChanges{
		Theme:       *theme,
		AutoRefresh: *autoRefresh,
		Interval:    *interval,
		DownloadDir: *downloadDir,
		Language:    *lang,
		ZoomIn:      *zoomIn,
		ZoomOut:     *zoomOut,
		ResetZoom:   *resetZoom,
	}); err != nil {
		return err
	}

	p := a.coord.Preferences()
	view := settingsView{
		Path:            resolvedPrefsPath(*prefsPath),
		Preferences:     p,
		DownloadDir:     p.ResolvedDownloadDir(),
		CredentialsPath: a.coord.CredentialsLocation(),
	}
	if *jsonOut {
		return printJSON(view)
	}
	fmt.Printf("updated preferences in %s\n", view.Path)
	return printSettingsTable(view)
}

type settingsChanges struct {
	Theme       string
	AutoRefresh string
	Interval    int
	DownloadDir string
	Language    string
	ZoomIn      bool
	ZoomOut     bool
	ResetZoom   bool
}

func applySettings(c *coordinator.Coordinator, ch settingsChanges) error {
	if strings.TrimSpace(ch.Theme) != "" {
		if _, err := c.SetTheme(ch.Theme); err != nil {
			return err
		}
	}
	if strings.TrimSpace(ch.AutoRefresh) != "" || ch.Interval != 0 {
		if ch.Interval < 0 {
			return errors.New("--interval must be >= 0")
		}
		enabled := c.Preferences().AutoRefresh
		if raw := strings.TrimSpace(ch.AutoRefresh); raw != "" {
			v, ok := parseOnOff(raw)
			if !ok {
				return errors.New("--auto-refresh must be on or off")
			}
			enabled = v
		}
		if _, err := c.SetAutoRefresh(enabled, ch.Interval); err != nil {
			return err
		}
	}
	if strings.TrimSpace(ch.DownloadDir) != "" {
		if _, err := c.SetDownloadDir(ch.DownloadDir); err != nil {
			return err
		}
	}
	if strings.TrimSpace(ch.Language) != "" {
		if _, err := c.SetCollateLanguage(ch.Language); err != nil {
			return err
		}
	}
	switch {
	case ch.ResetZoom:
		_, err := c.ResetZoom()
		return err
	case ch.ZoomIn:
		_, err := c.ZoomIn()
		return err
	case ch.ZoomOut:
		_, err := c.ZoomOut()
		return err
	}
	return nil
}

func parseOnOff(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "y", "yes", "true", "1":
		return true, true
	case "off", "n", "no", "false", "0":
		return false, true
	default:
		return false, false
	}
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show [--json]")
	fmt.Println("  settings set [--theme system|light|dark] [--auto-refresh on|off] [--interval N]")
	fmt.Println("               [--download-dir <dir>] [--language <tag>] [--zoom-in|--zoom-out|--reset-zoom]")
}
