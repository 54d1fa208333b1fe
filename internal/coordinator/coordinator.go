// Package coordinator ties the job store, scheduler, download tracker,
// update state machine and notifications to one signed-in session, and
// publishes change signals for the UI.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/autorefresh"
	"nsg-job-manager/internal/jobstore"
	"nsg-job-manager/internal/jobview"
	"nsg-job-manager/internal/model"
	"nsg-job-manager/internal/notify"
	"nsg-job-manager/internal/nsg"
	"nsg-job-manager/internal/prefs"
	"nsg-job-manager/internal/progress"
	"nsg-job-manager/internal/updater"
)

var ErrNotConnected = errors.New("not connected")

// JobService is what a signed-in session needs from the job service.
type JobService interface {
	jobstore.Service
	Connect(ctx context.Context) (string, error)
	DownloadResults(ctx context.Context, jobURL, outputDir string, onProgress progress.Func) (string, error)
	DisplayUsername() string
}

// Dialer builds a session for the given credentials without network I/O.
type Dialer func(creds nsg.Credentials) (JobService, error)

type Config struct {
	Prefs           *prefs.Store
	Logger          logrus.FieldLogger
	Dial            Dialer
	UpdateBackend   updater.Backend
	CredentialsPath string
	Policy          jobstore.Policy
	// ProgressRate caps DownloadProgress/UpdateChanged signals per second.
	ProgressRate float64
	NewTicker    func(d time.Duration) autorefresh.Ticker
	ToastTTL     time.Duration
}

type Coordinator struct {
	cfg    Config
	logger logrus.FieldLogger

	prefsStore *prefs.Store
	toasts     *notify.Queue
	store      *jobstore.Store
	scheduler  *autorefresh.Scheduler
	tracker    *progress.Tracker
	updates    *updater.Coordinator

	mu       sync.Mutex
	session  JobService
	user     string
	settings prefs.Preferences

	events chan Event
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Prefs == nil {
		return nil, errors.New("preferences store is required")
	}
	if cfg.Dial == nil {
		return nil, errors.New("dialer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.ProgressRate == 0 {
		cfg.ProgressRate = 10
	}
	settings, err := cfg.Prefs.Load()
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	c := &Coordinator{
		cfg:        cfg,
		logger:     cfg.Logger,
		prefsStore: cfg.Prefs,
		settings:   settings,
		tracker:    progress.NewTracker(nil),
		events:     make(chan Event, eventBuffer),
	}
	c.toasts = notify.New(notify.Config{
		TTL:      cfg.ToastTTL,
		Logger:   cfg.Logger.WithField("component", "notify"),
		OnChange: func() { c.publish(Event{Kind: ToastsChanged}) },
	})
	c.store = jobstore.New(jobstore.Config{
		Policy:   cfg.Policy,
		Logger:   cfg.Logger.WithField("component", "jobstore"),
		Notifier: c.toasts,
	})
	c.store.OnChange(func(jobstore.Snapshot) { c.publish(Event{Kind: JobsChanged}) })
	c.scheduler = autorefresh.New(c.store, autorefresh.Config{
		Logger:    cfg.Logger.WithField("component", "autorefresh"),
		NewTicker: cfg.NewTicker,
	})
	c.scheduler.Configure(settings.AutoRefresh, settings.RefreshInterval())

	backend := cfg.UpdateBackend
	if backend == nil {
		backend = disabledUpdates{}
	}
	c.updates = updater.New(backend, updater.Config{
		Logger:     cfg.Logger.WithField("component", "updater"),
		Notifier:   c.toasts,
		OnChange:   func(updater.State) { c.publish(Event{Kind: UpdateChanged}) },
		OnProgress: progress.Throttle(func(progress.Event) { c.publish(Event{Kind: UpdateChanged}) }, cfg.ProgressRate),
	})
	return c, nil
}

// Close stops background timers. In-flight requests finish on their own.
func (c *Coordinator) Close() {
	c.scheduler.Stop()
	c.toasts.Close()
}

func (c *Coordinator) credentialsPath() (string, error) {
	if p := strings.TrimSpace(c.cfg.CredentialsPath); p != "" {
		return p, nil
	}
	return nsg.CredentialsLocation()
}

func (c *Coordinator) CredentialsLocation() string {
	p, err := c.credentialsPath()
	if err != nil {
		return ""
	}
	return p
}

// SavedCredentials loads the credentials file, if any.
func (c *Coordinator) SavedCredentials() (nsg.Credentials, error) {
	p, err := c.credentialsPath()
	if err != nil {
		return nsg.Credentials{}, err
	}
	return nsg.LoadCredentials(p)
}

// Connect tests creds against the service. On failure nothing changes. On
// success the session is replaced, auto-refresh is armed and an initial
// refresh runs.
func (c *Coordinator) Connect(ctx context.Context, creds nsg.Credentials, remember bool) (string, error) {
	svc, err := c.cfg.Dial(creds)
	if err != nil {
		return "", err
	}
	msg, err := svc.Connect(ctx)
	if err != nil {
		c.logger.WithField("user", creds.Username).WithError(err).Warn("connect failed")
		return "", err
	}

	c.mu.Lock()
	previous := c.user
	c.session = svc
	c.user = creds.Username
	c.mu.Unlock()

	if previous != "" && previous != creds.Username {
		c.store.Reset()
	}
	c.store.SetService(svc)
	if remember {
		if path, err := c.credentialsPath(); err == nil {
			if err := nsg.SaveCredentials(path, creds); err != nil {
				c.logger.WithError(err).Warn("could not save credentials")
				c.toasts.Error(fmt.Sprintf("Could not save credentials: %v", err))
			}
		}
	}
	c.scheduler.SetConnected(true)
	c.toasts.Success(msg)
	c.publish(Event{Kind: SessionChanged})

	_ = c.store.Refresh(ctx)
	return msg, nil
}

func (c *Coordinator) Disconnect() {
	c.scheduler.SetConnected(false)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.store.SetService(nil)
	c.publish(Event{Kind: SessionChanged})
}

func (c *Coordinator) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *Coordinator) DisplayUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.DisplayUsername()
}

func (c *Coordinator) currentSession() (JobService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.store.Refresh(ctx)
}

func (c *Coordinator) Jobs() jobstore.Snapshot {
	return c.store.Snapshot()
}

// View projects the cached jobs through the criteria.
func (c *Coordinator) View(criteria model.ViewCriteria) []model.JobSummary {
	lang := c.Preferences().Language()
	return jobview.ProjectWith(c.store.Snapshot().Jobs, criteria, jobview.Options{Language: lang})
}

func (c *Coordinator) StageOptions() []string {
	return jobview.StageOptions(c.store.Snapshot().Jobs)
}

// Submit returns submission errors to the caller, which keeps its form
// state for a retry.
func (c *Coordinator) Submit(ctx context.Context, filePath, tool string) (string, error) {
	if _, err := c.currentSession(); err != nil {
		return "", err
	}
	jobID, err := c.store.Submit(ctx, filePath, tool)
	if err != nil {
		return "", err
	}
	c.toasts.Success(fmt.Sprintf("Job submitted: %s", jobID))
	return jobID, nil
}

func (c *Coordinator) JobDetails(ctx context.Context, jobURL string) (model.JobDetails, error) {
	return c.store.Details(ctx, jobURL)
}

func (c *Coordinator) OpenDetails(ctx context.Context, jobURL string) (model.JobDetails, error) {
	return c.store.OpenDetails(ctx, jobURL)
}

func (c *Coordinator) CloseDetails() {
	c.store.CloseDetails()
}

func (c *Coordinator) Details() jobstore.DetailState {
	return c.store.DetailSnapshot()
}

// Download fetches results into the configured download directory. Only
// one download runs at a time; a second request is rejected.
func (c *Coordinator) Download(ctx context.Context, jobURL string) (string, error) {
	return c.DownloadTo(ctx, jobURL, "")
}

// DownloadTo is Download with an explicit output directory; empty means the
// configured one.
func (c *Coordinator) DownloadTo(ctx context.Context, jobURL, dir string) (string, error) {
	svc, err := c.currentSession()
	if err != nil {
		return "", err
	}
	if err := c.tracker.Begin(); err != nil {
		c.toasts.Info("A download is already in progress")
		return "", err
	}
	c.publish(Event{Kind: DownloadProgress})

	if strings.TrimSpace(dir) == "" {
		dir = c.Preferences().ResolvedDownloadDir()
	}
	notifyUI := progress.Throttle(func(ev progress.Event) {
		c.publish(Event{Kind: DownloadProgress, Progress: &model.DownloadProgressEvent{Filename: ev.Label, Downloaded: ev.Done, Total: ev.Total}})
	}, c.cfg.ProgressRate)
	onProgress := func(ev progress.Event) {
		if c.tracker.Progress(ev) {
			notifyUI.Emit(ev)
		}
	}

	log := c.logger.WithFields(logrus.Fields{"job_url": jobURL, "dir": dir})
	path, err := svc.DownloadResults(ctx, jobURL, dir, onProgress)
	c.tracker.Complete()
	c.publish(Event{Kind: DownloadComplete, Path: path, Err: err})
	if err != nil {
		log.WithError(err).Warn("download failed")
		c.toasts.Error(err.Error())
		return "", err
	}
	log.WithField("path", path).Info("download complete")
	c.toasts.Success(fmt.Sprintf("Downloaded to %s", path))
	return path, nil
}

func (c *Coordinator) DownloadState() progress.Snapshot {
	return c.tracker.Snapshot()
}

func (c *Coordinator) CheckForUpdate(ctx context.Context) (*model.UpdateInfo, error) {
	return c.updates.Check(ctx)
}

func (c *Coordinator) InstallUpdate(ctx context.Context) error {
	return c.updates.Install(ctx)
}

func (c *Coordinator) UpdateState() updater.State {
	return c.updates.State()
}

func (c *Coordinator) Toasts(now time.Time) []model.ToastMessage {
	return c.toasts.Active(now)
}

func (c *Coordinator) LatestToast(now time.Time) (model.ToastMessage, bool) {
	return c.toasts.Latest(now)
}

// DismissLatestToast drops the newest live message, if any.
func (c *Coordinator) DismissLatestToast(now time.Time) bool {
	toast, ok := c.toasts.Latest(now)
	if !ok {
		return false
	}
	return c.toasts.Dismiss(toast.ID)
}

// Notify pushes a message from the UI layer itself.
func (c *Coordinator) Notify(message string, kind model.ToastKind) {
	c.toasts.Push(message, kind)
}

func (c *Coordinator) Preferences() prefs.Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Coordinator) applyPreferences(p prefs.Preferences, err error) (prefs.Preferences, error) {
	if err != nil {
		return prefs.Preferences{}, err
	}
	c.mu.Lock()
	c.settings = p
	c.mu.Unlock()
	c.publish(Event{Kind: SettingsChanged})
	return p, nil
}

// SetAutoRefresh persists the setting and re-arms the scheduler.
func (c *Coordinator) SetAutoRefresh(enabled bool, intervalSeconds int) (prefs.Preferences, error) {
	p, err := c.applyPreferences(c.prefsStore.SetAutoRefresh(enabled, intervalSeconds))
	if err != nil {
		return p, err
	}
	c.scheduler.Configure(p.AutoRefresh, p.RefreshInterval())
	return p, nil
}

func (c *Coordinator) AutoRefreshArmed() bool {
	return c.scheduler.Armed()
}

func (c *Coordinator) SetTheme(theme string) (prefs.Preferences, error) {
	return c.applyPreferences(c.prefsStore.SetTheme(theme))
}

func (c *Coordinator) SetDownloadDir(dir string) (prefs.Preferences, error) {
	return c.applyPreferences(c.prefsStore.SetDownloadDir(dir))
}

func (c *Coordinator) SetCollateLanguage(tag string) (prefs.Preferences, error) {
	return c.applyPreferences(c.prefsStore.SetCollateLanguage(tag))
}

func (c *Coordinator) ZoomIn() (prefs.Preferences, error) {
	return c.applyPreferences(c.prefsStore.ZoomIn())
}

func (c *Coordinator) ZoomOut() (prefs.Preferences, error) {
	return c.applyPreferences(c.prefsStore.ZoomOut())
}

func (c *Coordinator) ResetZoom() (prefs.Preferences, error) {
	return c.applyPreferences(c.prefsStore.ResetZoom())
}

type disabledUpdates struct{}

func (disabledUpdates) Check(context.Context) (*model.UpdateInfo, error) {
	return nil, errors.New("updates are not configured for this build")
}

func (disabledUpdates) DownloadAndInstall(context.Context, model.UpdateInfo, func(updater.Phase)) error {
	return errors.New("updates are not configured for this build")
}

func (disabledUpdates) Relaunch() error {
	return errors.New("updates are not configured for this build")
}
