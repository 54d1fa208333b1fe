// Package autorefresh re-fetches the job list on a fixed period while the
// session is connected and auto-refresh is enabled.
package autorefresh

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval = 60 * time.Second
	MinInterval     = 10 * time.Second
)

type Refresher interface {
	Refresh(ctx context.Context) error
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

type Config struct {
	Logger    logrus.FieldLogger
	NewTicker func(d time.Duration) Ticker
}

// Scheduler keeps at most one ticker loop alive. Every change to the
// connected flag, the enabled flag or the interval tears the loop down and
// arms a new one if still eligible.
type Scheduler struct {
	mu        sync.Mutex
	refresher Refresher
	logger    logrus.FieldLogger
	newTicker func(d time.Duration) Ticker

	baseCtx    context.Context
	cancelBase context.CancelFunc

	connected bool
	enabled   bool
	interval  time.Duration
	stopped   bool

	stopLoop chan struct{}
	loopDone chan struct{}
}

func New(refresher Refresher, cfg Config) *Scheduler {
	s := &Scheduler{
		refresher: refresher,
		logger:    cfg.Logger,
		newTicker: cfg.NewTicker,
		interval:  DefaultInterval,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.newTicker == nil {
		s.newTicker = func(d time.Duration) Ticker { return stdTicker{t: time.NewTicker(d)} }
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	return s
}

func (s *Scheduler) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == connected {
		return
	}
	s.connected = connected
	s.rearmLocked()
}

// Configure sets enabled and period. Intervals below MinInterval are raised.
func (s *Scheduler) Configure(enabled bool, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled == enabled && s.interval == interval {
		return
	}
	s.enabled = enabled
	s.interval = interval
	s.rearmLocked()
}

// Armed reports whether a ticker loop is currently running.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLoop != nil
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Stop disarms permanently and cancels any tick-triggered refresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.disarmLocked()
	s.cancelBase()
}

func (s *Scheduler) rearmLocked() {
	s.disarmLocked()
	if s.stopped || !s.connected || !s.enabled || s.interval <= 0 {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	ticker := s.newTicker(s.interval)
	s.stopLoop = stop
	s.loopDone = done
	s.logger.WithField("interval", s.interval.String()).Debug("auto-refresh armed")
	go s.loop(ticker, stop, done)
}

// disarmLocked waits for the loop to exit. The loop never blocks on a
// refresh, so the wait is short.
func (s *Scheduler) disarmLocked() {
	if s.stopLoop == nil {
		return
	}
	close(s.stopLoop)
	<-s.loopDone
	s.stopLoop = nil
	s.loopDone = nil
	s.logger.Debug("auto-refresh disarmed")
}

func (s *Scheduler) loop(ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			s.tick()
		}
	}
}

// tick starts a refresh without waiting on earlier ones; the store decides
// which overlapping response is shown.
func (s *Scheduler) tick() {
	go func() {
		if err := s.refresher.Refresh(s.baseCtx); err != nil {
			s.logger.WithError(err).Debug("auto-refresh failed")
		}
	}()
}
