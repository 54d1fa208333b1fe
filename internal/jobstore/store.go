// Package jobstore owns the cached job list and its fetch lifecycle.
//
// Refreshes may overlap (manual plus scheduled); none cancels another. Under
// the default policy the last fetch to complete decides what is shown.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/model"
)

// Service is the job-service collaborator.
type Service interface {
	ListJobs(ctx context.Context) ([]model.JobSummary, error)
	JobStatus(ctx context.Context, jobURL string) (model.JobDetails, error)
	SubmitJob(ctx context.Context, filePath, tool string) (string, error)
}

// Notifier receives user-visible error messages.
type Notifier interface {
	Error(message string) model.ToastMessage
}

type Policy int

const (
	// LastCompletionWins applies every completed fetch in completion order.
	LastCompletionWins Policy = iota
	// DiscardSuperseded drops a response when a fetch issued later has
	// already been applied.
	DiscardSuperseded
)

var (
	ErrNoService     = errors.New("not connected to the job service")
	ErrSuperseded    = errors.New("refresh result superseded by a newer request")
	ErrDetailsClosed = errors.New("details view closed before the response arrived")
	ErrSessionEnded  = errors.New("session changed before the response arrived")
)

type Snapshot struct {
	Jobs        []model.JobSummary
	Stale       bool
	Err         string
	LastUpdated time.Time
	Loading     bool
}

type DetailState struct {
	URL     string
	Loading bool
	Err     string
	Details *model.JobDetails
}

type Config struct {
	Policy   Policy
	Logger   logrus.FieldLogger
	Notifier Notifier
	Now      func() time.Time
}

type Store struct {
	mu       sync.Mutex
	svc      Service
	policy   Policy
	logger   logrus.FieldLogger
	notifier Notifier
	now      func() time.Time

	jobs        []model.JobSummary
	stale       bool
	errMsg      string
	lastUpdated time.Time
	inflight    int
	issued      uint64
	applied     uint64
	// epoch advances on every service swap or reset; responses fetched
	// under an older epoch are never applied.
	epoch uint64

	detail    DetailState
	detailSeq uint64

	listeners []func(Snapshot)
}

func New(cfg Config) *Store {
	s := &Store{
		policy:   cfg.Policy,
		logger:   cfg.Logger,
		notifier: cfg.Notifier,
		now:      cfg.Now,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Store) SetService(svc Service) {
	s.mu.Lock()
	s.svc = svc
	s.epoch++
	s.mu.Unlock()
}

// Reset drops cached jobs and detail state, e.g. after signing in as a
// different user.
func (s *Store) Reset() {
	s.mu.Lock()
	s.jobs = nil
	s.stale = false
	s.errMsg = ""
	s.lastUpdated = time.Time{}
	s.applied = s.issued
	s.epoch++
	s.detailSeq++
	s.detail = DetailState{}
	s.mu.Unlock()
	s.emit()
}

// OnChange registers an observer called after every state change.
func (s *Store) OnChange(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	jobs := make([]model.JobSummary, len(s.jobs))
	copy(jobs, s.jobs)
	return Snapshot{
		Jobs:        jobs,
		Stale:       s.stale,
		Err:         s.errMsg,
		LastUpdated: s.lastUpdated,
		Loading:     s.inflight > 0,
	}
}

func (s *Store) emit() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Refresh fetches the full job list. Success replaces the cache and clears
// the stale flag; failure keeps the previous list and records the error.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	svc := s.svc
	if svc == nil {
		s.mu.Unlock()
		return ErrNoService
	}
	s.issued++
	gen := s.issued
	epoch := s.epoch
	s.inflight++
	s.mu.Unlock()
	s.emit()

	log := s.logger.WithField("refresh_generation", gen)
	jobs, err := svc.ListJobs(ctx)

	s.mu.Lock()
	s.inflight--
	if epoch != s.epoch {
		s.mu.Unlock()
		log.Debug("dropping refresh from a previous session")
		s.emit()
		return ErrSessionEnded
	}
	if s.policy == DiscardSuperseded && gen < s.applied {
		applied := s.applied
		s.mu.Unlock()
		log.WithField("applied_generation", applied).Debug("dropping superseded refresh")
		s.emit()
		return ErrSuperseded
	}
	if err != nil {
		s.stale = true
		s.errMsg = err.Error()
		s.mu.Unlock()
		log.WithError(err).Warn("job list refresh failed; keeping cached list")
		if s.notifier != nil {
			s.notifier.Error(err.Error())
		}
		s.emit()
		return err
	}
	s.jobs = dedupeByURL(jobs)
	s.stale = false
	s.errMsg = ""
	s.lastUpdated = s.now()
	if gen > s.applied {
		s.applied = gen
	}
	count := len(s.jobs)
	s.mu.Unlock()

	log.WithField("jobs", count).Debug("job list refreshed")
	s.emit()
	return nil
}

// Submit sends a new job and, on success, refreshes the list. The refresh
// outcome does not change the submit result.
func (s *Store) Submit(ctx context.Context, filePath, tool string) (string, error) {
	filePath = strings.TrimSpace(filePath)
	tool = strings.TrimSpace(tool)
	if filePath == "" {
		return "", fmt.Errorf("input file is required")
	}
	if tool == "" {
		return "", fmt.Errorf("tool is required")
	}

	s.mu.Lock()
	svc := s.svc
	s.mu.Unlock()
	if svc == nil {
		return "", ErrNoService
	}

	jobID, err := svc.SubmitJob(ctx, filePath, tool)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"tool": tool, "file": filePath}).WithError(err).Warn("job submission failed")
		return "", err
	}
	s.logger.WithFields(logrus.Fields{"tool": tool, "job_id": jobID}).Info("job submitted")
	_ = s.Refresh(ctx)
	return jobID, nil
}

// Details fetches one job without touching the list or the open view.
func (s *Store) Details(ctx context.Context, jobURL string) (model.JobDetails, error) {
	s.mu.Lock()
	svc := s.svc
	s.mu.Unlock()
	if svc == nil {
		return model.JobDetails{}, ErrNoService
	}
	return svc.JobStatus(ctx, jobURL)
}

// OpenDetails opens the detail view for jobURL and loads it. A response for
// a view that was closed or replaced meanwhile is discarded.
func (s *Store) OpenDetails(ctx context.Context, jobURL string) (model.JobDetails, error) {
	s.mu.Lock()
	svc := s.svc
	if svc == nil {
		s.mu.Unlock()
		return model.JobDetails{}, ErrNoService
	}
	s.detailSeq++
	seq := s.detailSeq
	s.detail = DetailState{URL: jobURL, Loading: true}
	s.mu.Unlock()
	s.emit()

	details, err := svc.JobStatus(ctx, jobURL)

	s.mu.Lock()
	if seq != s.detailSeq {
		s.mu.Unlock()
		return model.JobDetails{}, ErrDetailsClosed
	}
	s.detail.Loading = false
	if err != nil {
		s.detail.Err = err.Error()
		s.mu.Unlock()
		s.logger.WithField("job_url", jobURL).WithError(err).Warn("job status fetch failed")
		s.emit()
		return model.JobDetails{}, err
	}
	d := details
	s.detail.Details = &d
	s.mu.Unlock()
	s.emit()
	return details, nil
}

func (s *Store) CloseDetails() {
	s.mu.Lock()
	s.detailSeq++
	s.detail = DetailState{}
	s.mu.Unlock()
	s.emit()
}

func (s *Store) DetailSnapshot() DetailState {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.detail
	if d.Details != nil {
		cp := *d.Details
		d.Details = &cp
	}
	return d
}

// dedupeByURL keeps the first position of each url with the last value seen.
func dedupeByURL(jobs []model.JobSummary) []model.JobSummary {
	out := make([]model.JobSummary, 0, len(jobs))
	index := make(map[string]int, len(jobs))
	for _, j := range jobs {
		if i, ok := index[j.URL]; ok {
			out[i] = j
			continue
		}
		index[j.URL] = len(out)
		out = append(out, j)
	}
	return out
}
