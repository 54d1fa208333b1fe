package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"nsg-job-manager/internal/model"
	"nsg-job-manager/internal/progress"
	"nsg-job-manager/internal/updater"
	"nsg-job-manager/internal/version"
)

type selfUpdateResult struct {
	Current      string `json:"current"`
	Latest       string `json:"latest,omitempty"`
	Available    bool   `json:"available"`
	Installed    bool   `json:"installed"`
	InstalledExe string `json:"installed_exe,omitempty"`
}

func runSelfUpdate(args []string) error {
	fs := flag.NewFlagSet("self-update", flag.ContinueOnError)
	checkOnly := fs.Bool("check", false, "only report whether a newer release exists")
	installDir := fs.String("install-dir", "", "install directory (defaults to replacing the running executable)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	logger, closeLog := newLogger(false)
	defer closeLog()
	backend := newUpdateBackend(logger)
	if dir := strings.TrimSpace(*installDir); dir != "" {
		_, binaryName, err := updater.ReleaseAssetForRuntime(version.Value)
		if err != nil {
			return err
		}
		backend.TargetPath = filepath.Join(dir, binaryName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	info, err := backend.Check(ctx)
	if err != nil {
		return err
	}
	result := selfUpdateResult{Current: updater.NormalizeVersionTag(version.Value), Available: info != nil}
	if info != nil {
		result.Latest = info.Version
	}
	if info == nil || *checkOnly {
		return reportSelfUpdate(result, *jsonOut)
	}

	if err := installWithProgress(ctx, backend, *info, !*jsonOut); err != nil {
		return err
	}
	result.Installed = true
	result.InstalledExe = backend.TargetPath
	if result.InstalledExe == "" {
		if exe, err := os.Executable(); err == nil {
			result.InstalledExe = exe
		}
	}
	return reportSelfUpdate(result, *jsonOut)
}

func installWithProgress(ctx context.Context, backend updater.Backend, info model.UpdateInfo, show bool) error {
	var done, total int64
	onPhase := func(p updater.Phase) {
		switch p.Kind {
		case updater.PhaseStarted:
			total = p.ContentLength
		case updater.PhaseProgress:
			done += p.ChunkLength
		case updater.PhaseFinished:
			if total > 0 {
				done = total
			}
		}
		if !show {
			return
		}
		if pct, ok := progress.Percent(done, total); ok {
			fmt.Fprintf(os.Stderr, "\rdownloading %s  %5.1f%%  %s/%s", info.Version, pct, progress.FormatBytesIEC(done), progress.FormatBytesIEC(total))
		} else {
			fmt.Fprintf(os.Stderr, "\rdownloading %s  %s", info.Version, progress.FormatBytesIEC(done))
		}
	}
	err := backend.DownloadAndInstall(ctx, info, onPhase)
	if show {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("update cancelled")
		}
		return err
	}
	return nil
}

func reportSelfUpdate(r selfUpdateResult, jsonOut bool) error {
	if jsonOut {
		return printJSON(r)
	}
	switch {
	case !r.Available:
		fmt.Printf("already up to date (%s)\n", r.Current)
	case !r.Installed:
		fmt.Printf("update available: %s (current %s). Run: nsg-job-manager self-update\n", r.Latest, r.Current)
	default:
		fmt.Printf("updated to %s\n", r.Latest)
		fmt.Printf("installed: %s\n", r.InstalledExe)
		if runtime.GOOS == "windows" {
			fmt.Println("restart the application to use the new version.")
		}
	}
	return nil
}
