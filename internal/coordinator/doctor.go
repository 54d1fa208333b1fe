package coordinator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"nsg-job-manager/internal/filestore"
	"nsg-job-manager/internal/nsg"
	"nsg-job-manager/internal/prefs"
)

type DoctorOptions struct {
	PrefsPath       string
	CredentialsPath string
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Doctor inspects local setup without contacting the job service.
func Doctor(opts DoctorOptions) (DoctorResult, error) {
	prefsPath := strings.TrimSpace(opts.PrefsPath)
	if prefsPath == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			return DoctorResult{}, err
		}
		prefsPath = p
	}
	credPath := strings.TrimSpace(opts.CredentialsPath)
	if credPath == "" {
		p, err := nsg.CredentialsLocation()
		if err != nil {
			return DoctorResult{}, err
		}
		credPath = p
	}

	checks := make([]DoctorCheck, 0, 5)

	cfgOK, cfgMessage := filestore.EnsureWritableDir(filepath.Dir(prefsPath))
	checks = append(checks, DoctorCheck{Name: "directory:config", OK: cfgOK, Message: cfgMessage})

	settings, err := prefs.NewStore(prefsPath, nil).Load()
	if err != nil {
		checks = append(checks, DoctorCheck{Name: "preferences", OK: false, Message: err.Error()})
		settings = prefs.Defaults()
	} else {
		checks = append(checks, DoctorCheck{Name: "preferences", OK: true, Message: preferencesMessage(prefsPath)})
	}

	checks = append(checks, credentialsCheck(credPath))
	checks = append(checks, downloadDirCheck(settings.ResolvedDownloadDir()))

	if nsg.ShowcaseEnabled() {
		checks = append(checks, DoctorCheck{Name: "mode:showcase", OK: true, Message: "SHOWCASE_MODE is set; identifiers are anonymized"})
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}, nil
}

func preferencesMessage(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "not saved yet; defaults in use"
	}
	return "loaded from " + path
}

func credentialsCheck(path string) DoctorCheck {
	check := DoctorCheck{Name: "credentials"}
	creds, err := nsg.LoadCredentials(path)
	if errors.Is(err, nsg.ErrNoCredentials) {
		check.OK = true
		check.Message = "none saved; sign in from the UI or run connect"
		return check
	}
	if err != nil {
		check.Message = err.Error()
		return check
	}
	if err := creds.Validate(); err != nil {
		check.Message = fmt.Sprintf("%s: %v", path, err)
		return check
	}
	if runtime.GOOS != "windows" {
		if info, err := os.Stat(path); err == nil && info.Mode().Perm()&0o077 != 0 {
			check.Message = fmt.Sprintf("%s is readable by other users (mode %04o); run chmod 600", path, info.Mode().Perm())
			return check
		}
	}
	check.OK = true
	check.Message = fmt.Sprintf("saved for %s at %s", creds.Username, path)
	return check
}

func downloadDirCheck(dir string) DoctorCheck {
	check := DoctorCheck{Name: "directory:downloads"}
	resolved, err := prefs.ValidateDownloadDir(dir)
	if err != nil {
		check.Message = err.Error()
		return check
	}
	check.OK, check.Message = filestore.EnsureWritableDir(resolved)
	if check.OK {
		check.Message = resolved + " is writable"
	}
	return check
}
