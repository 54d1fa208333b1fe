package autorefresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

type fakeTicker struct {
	ch      chan time.Time
	period  time.Duration
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *tickerFactory) New(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time), period: d}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) live() []*fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeTicker, 0)
	for _, t := range f.tickers {
		if !t.isStopped() {
			out = append(out, t)
		}
	}
	return out
}

type countingRefresher struct {
	calls chan struct{}
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls <- struct{}{}
	return nil
}

func newTestScheduler() (*Scheduler, *tickerFactory, *countingRefresher) {
	logger, _ := test.NewNullLogger()
	factory := &tickerFactory{}
	ref := &countingRefresher{calls: make(chan struct{}, 8)}
	return New(ref, Config{Logger: logger, NewTicker: factory.New}), factory, ref
}

func TestArmedOnlyWhenConnectedAndEnabled(t *testing.T) {
	s, factory, _ := newTestScheduler()
	defer s.Stop()

	s.Configure(true, time.Minute)
	if s.Armed() {
		t.Fatalf("should not arm before connect")
	}
	s.SetConnected(true)
	if !s.Armed() || len(factory.live()) != 1 {
		t.Fatalf("expected exactly one live ticker after connect")
	}
	s.Configure(false, time.Minute)
	if s.Armed() || len(factory.live()) != 0 {
		t.Fatalf("expected disarm when disabled")
	}
	s.Configure(true, time.Minute)
	s.SetConnected(false)
	if s.Armed() || len(factory.live()) != 0 {
		t.Fatalf("expected disarm on disconnect")
	}
}

func TestIntervalChangeReplacesTicker(t *testing.T) {
	s, factory, _ := newTestScheduler()
	defer s.Stop()

	s.SetConnected(true)
	s.Configure(true, 30*time.Second)
	s.Configure(true, 45*time.Second)
	s.Configure(true, 2*time.Minute)

	live := factory.live()
	if len(live) != 1 {
		t.Fatalf("expected one live ticker, got %d", len(live))
	}
	if live[0].period != 2*time.Minute {
		t.Fatalf("expected latest period, got %v", live[0].period)
	}
}

func TestIntervalClampedToMinimum(t *testing.T) {
	s, factory, _ := newTestScheduler()
	defer s.Stop()
	s.SetConnected(true)
	s.Configure(true, time.Second)
	if got := s.Interval(); got != MinInterval {
		t.Fatalf("expected %v, got %v", MinInterval, got)
	}
	if live := factory.live(); len(live) != 1 || live[0].period != MinInterval {
		t.Fatalf("expected ticker at minimum interval")
	}
}

func TestTickCallsRefresh(t *testing.T) {
	s, factory, ref := newTestScheduler()
	defer s.Stop()
	s.Configure(true, time.Minute)
	s.SetConnected(true)

	factory.live()[0].ch <- time.Now()
	select {
	case <-ref.calls:
	case <-time.After(2 * time.Second):
		t.Fatalf("tick did not trigger refresh")
	}
}

type blockingRefresher struct {
	calls   chan struct{}
	release chan struct{}
}

func (r *blockingRefresher) Refresh(ctx context.Context) error {
	r.calls <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return nil
}

func TestSlowRefreshDoesNotSwallowTicks(t *testing.T) {
	logger, _ := test.NewNullLogger()
	factory := &tickerFactory{}
	ref := &blockingRefresher{calls: make(chan struct{}, 8), release: make(chan struct{})}
	s := New(ref, Config{Logger: logger, NewTicker: factory.New})
	defer s.Stop()
	defer close(ref.release)
	s.Configure(true, time.Minute)
	s.SetConnected(true)

	ticker := factory.live()[0]
	for i := 0; i < 3; i++ {
		ticker.ch <- time.Now()
	}
	for i := 0; i < 3; i++ {
		select {
		case <-ref.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d did not trigger a refresh while an earlier one was blocked", i+1)
		}
	}
}

func TestStopIsPermanent(t *testing.T) {
	s, factory, _ := newTestScheduler()
	s.Configure(true, time.Minute)
	s.SetConnected(true)
	s.Stop()
	s.Configure(true, 2*time.Minute)
	if s.Armed() || len(factory.live()) != 0 {
		t.Fatalf("stopped scheduler must not re-arm")
	}
}
