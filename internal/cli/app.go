package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/coordinator"
	"nsg-job-manager/internal/filestore"
	"nsg-job-manager/internal/nsg"
	"nsg-job-manager/internal/prefs"
	"nsg-job-manager/internal/updater"
	"nsg-job-manager/internal/version"
)

type appOptions struct {
	PrefsPath       string
	CredentialsPath string
	Interactive     bool
	// Lock takes the single-instance lock in the config directory.
	Lock bool
}

type app struct {
	coord   *coordinator.Coordinator
	logger  *logrus.Logger
	backend *updater.GitHubBackend
	lock    filestore.InstanceLock

	closeLog func()
}

func openApp(opts appOptions) (*app, error) {
	logger, closeLog := newLogger(opts.Interactive)

	prefsPath := strings.TrimSpace(opts.PrefsPath)
	if prefsPath == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			closeLog()
			return nil, err
		}
		prefsPath = p
	}

	a := &app{logger: logger, closeLog: closeLog}
	if opts.Lock {
		lock, err := filestore.AcquireInstanceLock(filepath.Dir(prefsPath))
		if err != nil {
			closeLog()
			return nil, err
		}
		a.lock = lock
	}

	a.backend = newUpdateBackend(logger)
	a.backend.BeforeRelaunch = func() { _ = a.lock.Release() }

	var showcase *nsg.Showcase
	if nsg.ShowcaseEnabled() {
		showcase = nsg.NewShowcase()
		logger.Info("showcase mode enabled")
	}
	clientLogger := logger.WithField("component", "nsg")

	coord, err := coordinator.New(coordinator.Config{
		Prefs:           prefs.NewStore(prefsPath, logger.WithField("component", "prefs")),
		Logger:          logger,
		CredentialsPath: strings.TrimSpace(opts.CredentialsPath),
		UpdateBackend:   a.backend,
		Dial: func(creds nsg.Credentials) (coordinator.JobService, error) {
			client, err := nsg.NewClient(creds, nsg.ClientOptions{Logger: clientLogger, Showcase: showcase})
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	})
	if err != nil {
		_ = a.lock.Release()
		closeLog()
		return nil, err
	}
	a.coord = coord
	return a, nil
}

func (a *app) Close() {
	a.coord.Close()
	if err := a.lock.Release(); err != nil {
		a.logger.WithError(err).Warn("release instance lock")
	}
	a.closeLog()
}

// newUpdateBackend honors NSGJM_UPDATE_REPO for forks and test channels.
func newUpdateBackend(logger logrus.FieldLogger) *updater.GitHubBackend {
	return &updater.GitHubBackend{
		Repo:           strings.TrimSpace(os.Getenv("NSGJM_UPDATE_REPO")),
		CurrentVersion: version.Value,
		Logger:         logger.WithField("component", "updater"),
	}
}
