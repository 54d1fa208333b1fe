// Package updater drives the check -> install -> relaunch lifecycle of the
// application's own binary.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/model"
	"nsg-job-manager/internal/progress"
)

type PhaseKind string

const (
	PhaseStarted  PhaseKind = "started"
	PhaseProgress PhaseKind = "progress"
	PhaseFinished PhaseKind = "finished"
)

// Phase is reported by a backend while it downloads and installs.
// ContentLength is set on Started (0 when unknown); ChunkLength on Progress.
type Phase struct {
	Kind          PhaseKind
	ContentLength int64
	ChunkLength   int64
}

type Backend interface {
	Check(ctx context.Context) (*model.UpdateInfo, error)
	DownloadAndInstall(ctx context.Context, info model.UpdateInfo, onPhase func(Phase)) error
	Relaunch() error
}

type Notifier interface {
	Success(message string) model.ToastMessage
	Error(message string) model.ToastMessage
	Info(message string) model.ToastMessage
}

var (
	ErrBusy         = errors.New("an update operation is already in progress")
	ErrNotAvailable = errors.New("no update is available to install")
)

type State struct {
	State model.UpdateState
	Info  *model.UpdateInfo
	Done  int64
	Total int64
	Err   string
}

func (s State) Percent() (float64, bool) {
	return progress.Percent(s.Done, s.Total)
}

type Config struct {
	Logger   logrus.FieldLogger
	Notifier Notifier
	OnChange func(State)
	// OnProgress receives install progress as cumulative events.
	OnProgress progress.Func
}

// Coordinator holds the single update state cell. Checking and Installing
// exclude each other and themselves.
type Coordinator struct {
	mu      sync.Mutex
	backend Backend
	cfg     Config
	logger  logrus.FieldLogger
	st      State
}

func New(backend Backend, cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Coordinator{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		st:      State{State: model.UpdateIdle},
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

func (c *Coordinator) copyLocked() State {
	s := c.st
	if s.Info != nil {
		info := *s.Info
		s.Info = &info
	}
	return s
}

func (c *Coordinator) publish() {
	if c.cfg.OnChange == nil {
		return
	}
	c.cfg.OnChange(c.State())
}

func (c *Coordinator) toastError(msg string) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Error(msg)
	}
}

func (c *Coordinator) toastInfo(msg string) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Info(msg)
	}
}

// Check asks the backend for a newer release. While a check or install is
// running the call is a no-op returning ErrBusy.
func (c *Coordinator) Check(ctx context.Context) (*model.UpdateInfo, error) {
	c.mu.Lock()
	if model.IsUpdateBusy(c.st.State) {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if err := model.TransitionUpdateState(&c.st.State, model.UpdateChecking); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.st.Err = ""
	c.mu.Unlock()
	c.publish()

	info, err := c.backend.Check(ctx)

	c.mu.Lock()
	if err != nil {
		_ = model.TransitionUpdateState(&c.st.State, model.UpdateIdle)
		c.st.Info = nil
		c.st.Err = err.Error()
		c.mu.Unlock()
		c.logger.WithError(err).Warn("update check failed")
		c.toastError(fmt.Sprintf("Update check failed: %v", err))
		c.publish()
		return nil, err
	}
	if info == nil {
		_ = model.TransitionUpdateState(&c.st.State, model.UpdateNoUpdate)
		c.st.Info = nil
		c.mu.Unlock()
		c.toastInfo("You are running the latest version")
		c.publish()
		return nil, nil
	}
	_ = model.TransitionUpdateState(&c.st.State, model.UpdateAvailable)
	found := *info
	c.st.Info = &found
	c.st.Done, c.st.Total = 0, 0
	c.mu.Unlock()

	c.logger.WithField("version", found.Version).Info("update available")
	c.toastInfo(fmt.Sprintf("Update available: %s", found.Version))
	c.publish()
	return &found, nil
}

// Install downloads and installs the offered release, then relaunches. A
// failed install returns to Available so the user can retry.
func (c *Coordinator) Install(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case model.IsUpdateBusy(c.st.State):
		c.mu.Unlock()
		return ErrBusy
	case c.st.State != model.UpdateAvailable || c.st.Info == nil:
		c.mu.Unlock()
		return ErrNotAvailable
	}
	_ = model.TransitionUpdateState(&c.st.State, model.UpdateInstalling)
	c.st.Done, c.st.Total = 0, 0
	c.st.Err = ""
	info := *c.st.Info
	c.mu.Unlock()
	c.publish()

	log := c.logger.WithField("version", info.Version)
	err := c.backend.DownloadAndInstall(ctx, info, c.applyPhase)

	c.mu.Lock()
	if err != nil {
		_ = model.TransitionUpdateState(&c.st.State, model.UpdateAvailable)
		c.st.Err = err.Error()
		c.mu.Unlock()
		log.WithError(err).Warn("update install failed")
		c.toastError(fmt.Sprintf("Update failed: %v", err))
		c.publish()
		return err
	}
	_ = model.TransitionUpdateState(&c.st.State, model.UpdateRelaunching)
	c.mu.Unlock()
	log.Info("update installed; relaunching")
	c.toastInfo("Update installed, restarting")
	c.publish()

	if err := c.backend.Relaunch(); err != nil {
		c.mu.Lock()
		c.st.Err = err.Error()
		c.mu.Unlock()
		log.WithError(err).Error("relaunch failed")
		c.toastError(fmt.Sprintf("Restart failed, please restart manually: %v", err))
		c.publish()
		return err
	}
	return nil
}

func (c *Coordinator) applyPhase(p Phase) {
	c.mu.Lock()
	if c.st.State != model.UpdateInstalling {
		c.mu.Unlock()
		return
	}
	switch p.Kind {
	case PhaseStarted:
		c.st.Total = p.ContentLength
		c.st.Done = 0
	case PhaseProgress:
		c.st.Done += p.ChunkLength
		if c.st.Total > 0 && c.st.Done > c.st.Total {
			c.st.Done = c.st.Total
		}
	case PhaseFinished:
		if c.st.Total > 0 {
			c.st.Done = c.st.Total
		}
	}
	ev := progress.Event{Done: c.st.Done, Total: c.st.Total}
	if c.st.Info != nil {
		ev.Label = c.st.Info.Version
	}
	c.mu.Unlock()

	c.cfg.OnProgress.Emit(ev)
	if p.Kind != PhaseProgress {
		c.publish()
	}
}
