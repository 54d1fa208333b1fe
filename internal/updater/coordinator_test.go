package updater

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"nsg-job-manager/internal/model"
	"nsg-job-manager/internal/progress"
)

type fakeBackend struct {
	checkCalls   atomic.Int32
	checkEntered chan struct{}
	checkRelease chan struct{}
	checkInfo    *model.UpdateInfo
	checkErr     error

	phases     []Phase
	installErr error

	relaunched atomic.Int32
	relaunchEr error
}

func (f *fakeBackend) Check(ctx context.Context) (*model.UpdateInfo, error) {
	f.checkCalls.Add(1)
	if f.checkEntered != nil {
		f.checkEntered <- struct{}{}
	}
	if f.checkRelease != nil {
		<-f.checkRelease
	}
	return f.checkInfo, f.checkErr
}

func (f *fakeBackend) DownloadAndInstall(ctx context.Context, info model.UpdateInfo, onPhase func(Phase)) error {
	for _, p := range f.phases {
		onPhase(p)
	}
	return f.installErr
}

func (f *fakeBackend) Relaunch() error {
	f.relaunched.Add(1)
	return f.relaunchEr
}

type toastRecorder struct {
	mu    sync.Mutex
	kinds []model.ToastKind
}

func (r *toastRecorder) push(kind model.ToastKind, msg string) model.ToastMessage {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
	return model.ToastMessage{Message: msg, Kind: kind}
}

func (r *toastRecorder) Success(m string) model.ToastMessage { return r.push(model.ToastSuccess, m) }
func (r *toastRecorder) Error(m string) model.ToastMessage   { return r.push(model.ToastError, m) }
func (r *toastRecorder) Info(m string) model.ToastMessage    { return r.push(model.ToastInfo, m) }

func (r *toastRecorder) count(kind model.ToastKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func newTestCoordinator(b Backend, toasts *toastRecorder, onProgress progress.Func) *Coordinator {
	logger, _ := test.NewNullLogger()
	return New(b, Config{Logger: logger, Notifier: toasts, OnProgress: onProgress})
}

func TestCheck_ConcurrentCheckIsNoOp(t *testing.T) {
	backend := &fakeBackend{
		checkEntered: make(chan struct{}, 1),
		checkRelease: make(chan struct{}),
		checkInfo:    &model.UpdateInfo{Version: "v1.2.0"},
	}
	c := newTestCoordinator(backend, &toastRecorder{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Check(context.Background())
		done <- err
	}()
	<-backend.checkEntered

	if got := c.State().State; got != model.UpdateChecking {
		t.Fatalf("expected checking, got %q", got)
	}
	if _, err := c.Check(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for concurrent check, got %v", err)
	}

	close(backend.checkRelease)
	if err := <-done; err != nil {
		t.Fatalf("first check: %v", err)
	}
	if n := backend.checkCalls.Load(); n != 1 {
		t.Fatalf("expected exactly one backend check, got %d", n)
	}
	st := c.State()
	if st.State != model.UpdateAvailable || st.Info == nil || st.Info.Version != "v1.2.0" {
		t.Fatalf("unexpected state after check: %#v", st)
	}
}

func TestCheck_NoUpdateAndRecheck(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestCoordinator(backend, &toastRecorder{}, nil)

	info, err := c.Check(context.Background())
	if err != nil || info != nil {
		t.Fatalf("expected no update, got %v %v", info, err)
	}
	if c.State().State != model.UpdateNoUpdate {
		t.Fatalf("expected no_update state")
	}
	backend.checkInfo = &model.UpdateInfo{Version: "v2.0.0"}
	if _, err := c.Check(context.Background()); err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if c.State().State != model.UpdateAvailable {
		t.Fatalf("expected available after recheck")
	}
}

func TestCheck_FailureReturnsToIdleWithToast(t *testing.T) {
	toasts := &toastRecorder{}
	backend := &fakeBackend{checkErr: errors.New("github api request failed (503)")}
	c := newTestCoordinator(backend, toasts, nil)

	if _, err := c.Check(context.Background()); err == nil {
		t.Fatalf("expected check error")
	}
	st := c.State()
	if st.State != model.UpdateIdle || st.Err == "" {
		t.Fatalf("unexpected state: %#v", st)
	}
	if toasts.count(model.ToastError) != 1 {
		t.Fatalf("expected one error toast")
	}
}

func TestInstall_RequiresAvailable(t *testing.T) {
	c := newTestCoordinator(&fakeBackend{}, &toastRecorder{}, nil)
	if err := c.Install(context.Background()); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
}

func TestInstall_FailureStaysAvailable(t *testing.T) {
	toasts := &toastRecorder{}
	backend := &fakeBackend{
		checkInfo:  &model.UpdateInfo{Version: "v1.2.0"},
		phases:     []Phase{{Kind: PhaseStarted, ContentLength: 100}, {Kind: PhaseProgress, ChunkLength: 40}},
		installErr: errors.New("checksum mismatch"),
	}
	c := newTestCoordinator(backend, toasts, nil)
	if _, err := c.Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}

	if err := c.Install(context.Background()); err == nil {
		t.Fatalf("expected install error")
	}
	st := c.State()
	if st.State != model.UpdateAvailable || st.Info == nil {
		t.Fatalf("expected to remain available for retry: %#v", st)
	}
	if backend.relaunched.Load() != 0 {
		t.Fatalf("relaunch must not run after a failed install")
	}
	if toasts.count(model.ToastError) != 1 {
		t.Fatalf("expected one error toast")
	}
}

func TestInstall_AccumulatesProgressAndRelaunches(t *testing.T) {
	var events []progress.Event
	backend := &fakeBackend{
		checkInfo: &model.UpdateInfo{Version: "v1.2.0"},
		phases: []Phase{
			{Kind: PhaseStarted, ContentLength: 100},
			{Kind: PhaseProgress, ChunkLength: 30},
			{Kind: PhaseProgress, ChunkLength: 30},
			{Kind: PhaseFinished},
		},
	}
	c := newTestCoordinator(backend, &toastRecorder{}, func(ev progress.Event) { events = append(events, ev) })
	if _, err := c.Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := c.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}

	wantDone := []int64{0, 30, 60, 100}
	if len(events) != len(wantDone) {
		t.Fatalf("expected %d events, got %#v", len(wantDone), events)
	}
	for i, ev := range events {
		if ev.Done != wantDone[i] || ev.Total != 100 || ev.Label != "v1.2.0" {
			t.Fatalf("event %d: %#v", i, ev)
		}
	}
	if c.State().State != model.UpdateRelaunching {
		t.Fatalf("expected relaunching state")
	}
	if backend.relaunched.Load() != 1 {
		t.Fatalf("expected relaunch to be called once")
	}
	if _, err := c.Check(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("relaunching is terminal; expected ErrBusy, got %v", err)
	}
}

func TestInstall_UnknownLengthStaysIndeterminate(t *testing.T) {
	backend := &fakeBackend{
		checkInfo:  &model.UpdateInfo{Version: "v1.2.0"},
		phases:     []Phase{{Kind: PhaseStarted}, {Kind: PhaseProgress, ChunkLength: 10}, {Kind: PhaseFinished}},
		relaunchEr: errors.New("exec format error"),
	}
	var last progress.Event
	c := newTestCoordinator(backend, &toastRecorder{}, func(ev progress.Event) { last = ev })
	_, _ = c.Check(context.Background())
	if err := c.Install(context.Background()); err == nil {
		t.Fatalf("expected relaunch error to surface")
	}
	if _, ok := progress.Percent(last.Done, last.Total); ok {
		t.Fatalf("expected indeterminate progress for unknown length: %#v", last)
	}
	if last.Done != 10 {
		t.Fatalf("expected accumulated 10 bytes, got %d", last.Done)
	}
}

func TestInstall_RelaunchFailureStaysTerminal(t *testing.T) {
	toasts := &toastRecorder{}
	backend := &fakeBackend{
		checkInfo:  &model.UpdateInfo{Version: "v1.2.0"},
		phases:     []Phase{{Kind: PhaseStarted, ContentLength: 10}, {Kind: PhaseFinished}},
		relaunchEr: errors.New("exec format error"),
	}
	c := newTestCoordinator(backend, toasts, nil)
	if _, err := c.Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}

	if err := c.Install(context.Background()); err == nil {
		t.Fatalf("expected relaunch error")
	}
	st := c.State()
	if st.State != model.UpdateRelaunching {
		t.Fatalf("expected to stay relaunching, got %q", st.State)
	}
	if st.Err != "exec format error" {
		t.Fatalf("expected relaunch error recorded, got %q", st.Err)
	}
	if toasts.count(model.ToastError) != 1 {
		t.Fatalf("expected one error toast")
	}
	if _, err := c.Check(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy after failed relaunch, got %v", err)
	}
	if err := c.Install(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected install to be refused, got %v", err)
	}
	if backend.checkCalls.Load() != 1 {
		t.Fatalf("backend must not be consulted again")
	}
}

func TestInstall_ChunksDoNotPublishStateChanges(t *testing.T) {
	backend := &fakeBackend{
		checkInfo: &model.UpdateInfo{Version: "v1.2.0"},
		phases: []Phase{
			{Kind: PhaseStarted, ContentLength: 1000},
			{Kind: PhaseProgress, ChunkLength: 100},
			{Kind: PhaseProgress, ChunkLength: 100},
			{Kind: PhaseProgress, ChunkLength: 100},
			{Kind: PhaseFinished},
		},
	}
	logger, _ := test.NewNullLogger()
	var changes, chunks int
	c := New(backend, Config{
		Logger:     logger,
		OnChange:   func(State) { changes++ },
		OnProgress: func(progress.Event) { chunks++ },
	})
	if _, err := c.Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	changes = 0

	if err := c.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}
	if chunks != 5 {
		t.Fatalf("expected every phase on the progress channel, got %d", chunks)
	}
	// installing, started, finished, relaunching
	if changes != 4 {
		t.Fatalf("expected 4 state publications, got %d", changes)
	}
}
