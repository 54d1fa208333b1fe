package jobstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"nsg-job-manager/internal/model"
)

type listResult struct {
	jobs []model.JobSummary
	err  error
}

// gatedService blocks each ListJobs call until the test releases it, so
// completion order can be chosen independently of issue order.
type gatedService struct {
	mu       sync.Mutex
	gates    []chan listResult
	arrived  chan int
	status   map[string]model.JobDetails
	statusCh chan struct{}
	submits  []string
	submitID string
	submitEr error
}

func newGatedService() *gatedService {
	return &gatedService{arrived: make(chan int, 16), status: map[string]model.JobDetails{}}
}

func (s *gatedService) ListJobs(ctx context.Context) ([]model.JobSummary, error) {
	s.mu.Lock()
	gate := make(chan listResult, 1)
	s.gates = append(s.gates, gate)
	idx := len(s.gates) - 1
	s.mu.Unlock()
	s.arrived <- idx

	select {
	case res := <-gate:
		return res.jobs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *gatedService) release(idx int, res listResult) {
	s.mu.Lock()
	gate := s.gates[idx]
	s.mu.Unlock()
	gate <- res
}

func (s *gatedService) JobStatus(ctx context.Context, jobURL string) (model.JobDetails, error) {
	if s.statusCh != nil {
		<-s.statusCh
	}
	d, ok := s.status[jobURL]
	if !ok {
		return model.JobDetails{}, errors.New("failed to get job status: not found")
	}
	return d, nil
}

func (s *gatedService) SubmitJob(ctx context.Context, filePath, tool string) (string, error) {
	s.mu.Lock()
	s.submits = append(s.submits, tool+":"+filePath)
	s.mu.Unlock()
	return s.submitID, s.submitEr
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Error(message string) model.ToastMessage {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	return model.ToastMessage{Message: message, Kind: model.ToastError}
}

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func jobsNamed(ids ...string) []model.JobSummary {
	out := make([]model.JobSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.JobSummary{JobID: id, URL: "https://nsg.example/job/u/" + id})
	}
	return out
}

func firstID(s Snapshot) string {
	if len(s.Jobs) == 0 {
		return ""
	}
	return s.Jobs[0].JobID
}

// runOverlapping issues A then B, completes B with Y, then A with X.
func runOverlapping(t *testing.T, store *Store, svc *gatedService) (errA, errB error) {
	t.Helper()
	ctx := context.Background()
	doneA := make(chan error, 1)
	doneB := make(chan error, 1)

	go func() { doneA <- store.Refresh(ctx) }()
	<-svc.arrived
	go func() { doneB <- store.Refresh(ctx) }()
	<-svc.arrived

	svc.release(1, listResult{jobs: jobsNamed("Y")})
	errB = <-doneB
	svc.release(0, listResult{jobs: jobsNamed("X")})
	errA = <-doneA
	return errA, errB
}

func TestRefresh_LastCompletionWins(t *testing.T) {
	svc := newGatedService()
	store := New(Config{Logger: quietLogger()})
	store.SetService(svc)

	errA, errB := runOverlapping(t, store, svc)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v %v", errA, errB)
	}
	if got := firstID(store.Snapshot()); got != "X" {
		t.Fatalf("expected last completion X to win, got %q", got)
	}
	if store.Snapshot().Loading {
		t.Fatalf("expected loading cleared")
	}
}

func TestRefresh_DiscardSupersededKeepsNewestIssued(t *testing.T) {
	svc := newGatedService()
	store := New(Config{Policy: DiscardSuperseded, Logger: quietLogger()})
	store.SetService(svc)

	errA, errB := runOverlapping(t, store, svc)
	if errB != nil {
		t.Fatalf("unexpected error for B: %v", errB)
	}
	if !errors.Is(errA, ErrSuperseded) {
		t.Fatalf("expected A to be superseded, got %v", errA)
	}
	if got := firstID(store.Snapshot()); got != "Y" {
		t.Fatalf("expected Y, got %q", got)
	}
}

func TestRefresh_PreviousSessionResponseIsDropped(t *testing.T) {
	svcA := newGatedService()
	notifier := &recordingNotifier{}
	store := New(Config{Logger: quietLogger(), Notifier: notifier})
	store.SetService(svcA)

	doneA := make(chan error, 1)
	go func() { doneA <- store.Refresh(context.Background()) }()
	<-svcA.arrived

	svcB := newGatedService()
	store.Reset()
	store.SetService(svcB)
	doneB := make(chan error, 1)
	go func() { doneB <- store.Refresh(context.Background()) }()
	<-svcB.arrived
	svcB.release(0, listResult{jobs: jobsNamed("B-JOB")})
	if err := <-doneB; err != nil {
		t.Fatalf("unexpected error for new session: %v", err)
	}

	svcA.release(0, listResult{jobs: jobsNamed("A-SECRET")})
	if err := <-doneA; !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected old session refresh to be dropped, got %v", err)
	}
	if got := firstID(store.Snapshot()); got != "B-JOB" {
		t.Fatalf("expected new session jobs to stay visible, got %q", got)
	}
}

func TestRefresh_PreviousSessionFailureIsSilent(t *testing.T) {
	svcA := newGatedService()
	notifier := &recordingNotifier{}
	store := New(Config{Logger: quietLogger(), Notifier: notifier})
	store.SetService(svcA)

	done := make(chan error, 1)
	go func() { done <- store.Refresh(context.Background()) }()
	<-svcA.arrived
	store.SetService(nil)
	svcA.release(0, listResult{err: errors.New("failed to list jobs: 401")})

	if err := <-done; !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	snap := store.Snapshot()
	if snap.Stale || snap.Err != "" || snap.Loading {
		t.Fatalf("old session failure leaked into state: %+v", snap)
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.messages) != 0 {
		t.Fatalf("expected no toast, got %v", notifier.messages)
	}
}

func TestRefresh_FailureKeepsStaleList(t *testing.T) {
	svc := newGatedService()
	notifier := &recordingNotifier{}
	store := New(Config{Logger: quietLogger(), Notifier: notifier})
	store.SetService(svc)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- store.Refresh(ctx) }()
	<-svc.arrived
	svc.release(0, listResult{jobs: jobsNamed("A", "B")})
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	go func() { done <- store.Refresh(ctx) }()
	<-svc.arrived
	svc.release(1, listResult{err: errors.New("failed to list jobs: 502")})
	if err := <-done; err == nil {
		t.Fatalf("expected refresh error")
	}

	snap := store.Snapshot()
	if len(snap.Jobs) != 2 {
		t.Fatalf("expected cached list retained, got %d jobs", len(snap.Jobs))
	}
	if !snap.Stale || snap.Err == "" || snap.Loading {
		t.Fatalf("unexpected snapshot after failure: %#v", snap)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one error toast, got %v", notifier.messages)
	}

	go func() { done <- store.Refresh(ctx) }()
	<-svc.arrived
	svc.release(2, listResult{jobs: jobsNamed("C")})
	<-done
	snap = store.Snapshot()
	if snap.Stale || snap.Err != "" || firstID(snap) != "C" {
		t.Fatalf("expected success to clear stale state: %#v", snap)
	}
}

func TestRefresh_CollapsesDuplicateURLs(t *testing.T) {
	svc := newGatedService()
	store := New(Config{Logger: quietLogger()})
	store.SetService(svc)

	done := make(chan error, 1)
	go func() { done <- store.Refresh(context.Background()) }()
	<-svc.arrived
	jobs := []model.JobSummary{
		{JobID: "old", URL: "u1"},
		{JobID: "other", URL: "u2"},
		{JobID: "new", URL: "u1"},
	}
	svc.release(0, listResult{jobs: jobs})
	<-done

	snap := store.Snapshot()
	if len(snap.Jobs) != 2 || snap.Jobs[0].JobID != "new" {
		t.Fatalf("expected duplicate url collapsed to last value: %#v", snap.Jobs)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	svc := newGatedService()
	store := New(Config{Logger: quietLogger()})
	store.SetService(svc)
	done := make(chan error, 1)
	go func() { done <- store.Refresh(context.Background()) }()
	<-svc.arrived
	svc.release(0, listResult{jobs: jobsNamed("A")})
	<-done

	snap := store.Snapshot()
	snap.Jobs[0].JobID = "mutated"
	if firstID(store.Snapshot()) != "A" {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}

func TestRefresh_WithoutServiceFails(t *testing.T) {
	store := New(Config{Logger: quietLogger()})
	if err := store.Refresh(context.Background()); !errors.Is(err, ErrNoService) {
		t.Fatalf("expected ErrNoService, got %v", err)
	}
}

func TestSubmit_TriggersRefresh(t *testing.T) {
	svc := newGatedService()
	svc.submitID = "NGBW-JOB-123"
	store := New(Config{Logger: quietLogger()})
	store.SetService(svc)

	done := make(chan struct{})
	var jobID string
	var err error
	go func() {
		jobID, err = store.Submit(context.Background(), "/tmp/model.zip", "NEURON_EXPANSE")
		close(done)
	}()

	select {
	case idx := <-svc.arrived:
		svc.release(idx, listResult{jobs: jobsNamed("NGBW-JOB-123")})
	case <-time.After(2 * time.Second):
		t.Fatalf("submit did not trigger a refresh")
	}
	<-done
	if err != nil || jobID != "NGBW-JOB-123" {
		t.Fatalf("unexpected submit result %q %v", jobID, err)
	}
	if firstID(store.Snapshot()) != "NGBW-JOB-123" {
		t.Fatalf("expected refreshed list to include the new job")
	}
}

func TestSubmit_ErrorSkipsRefresh(t *testing.T) {
	svc := newGatedService()
	svc.submitEr = errors.New("failed to submit job: bad tool")
	store := New(Config{Logger: quietLogger()})
	store.SetService(svc)

	if _, err := store.Submit(context.Background(), "/tmp/model.zip", "BOGUS"); err == nil {
		t.Fatalf("expected submit error")
	}
	select {
	case <-svc.arrived:
		t.Fatalf("failed submit should not refresh")
	default:
	}
}

func TestSubmit_ValidatesInputs(t *testing.T) {
	store := New(Config{Logger: quietLogger()})
	store.SetService(newGatedService())
	if _, err := store.Submit(context.Background(), " ", "NEURON"); err == nil {
		t.Fatalf("expected missing file error")
	}
	if _, err := store.Submit(context.Background(), "/tmp/a.zip", ""); err == nil {
		t.Fatalf("expected missing tool error")
	}
}

func TestOpenDetails_DiscardsResponseAfterClose(t *testing.T) {
	svc := newGatedService()
	svc.status["u1"] = model.JobDetails{JobID: "J1", JobStage: "COMPLETED", SelfURI: "u1"}
	svc.statusCh = make(chan struct{})
	store := New(Config{Logger: quietLogger()})
	store.SetService(svc)

	done := make(chan error, 1)
	go func() {
		_, err := store.OpenDetails(context.Background(), "u1")
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for !store.DetailSnapshot().Loading {
		select {
		case <-deadline:
			t.Fatalf("details never entered loading state")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	store.CloseDetails()
	close(svc.statusCh)

	if err := <-done; !errors.Is(err, ErrDetailsClosed) {
		t.Fatalf("expected ErrDetailsClosed, got %v", err)
	}
	if d := store.DetailSnapshot(); d.URL != "" || d.Details != nil {
		t.Fatalf("closed view should stay empty: %#v", d)
	}
}

func TestOpenDetails_ErrorIsIndependentOfList(t *testing.T) {
	svc := newGatedService()
	store := New(Config{Logger: quietLogger()})
	store.SetService(svc)

	if _, err := store.OpenDetails(context.Background(), "missing"); err == nil {
		t.Fatalf("expected details error")
	}
	d := store.DetailSnapshot()
	if d.Loading || d.Err == "" {
		t.Fatalf("expected error detail state: %#v", d)
	}
	if snap := store.Snapshot(); snap.Err != "" || snap.Stale {
		t.Fatalf("details failure must not touch list state: %#v", snap)
	}
}

func TestOnChangeObservesLoadingTransitions(t *testing.T) {
	svc := newGatedService()
	store := New(Config{Logger: quietLogger()})
	store.SetService(svc)

	var mu sync.Mutex
	var loading []bool
	store.OnChange(func(s Snapshot) {
		mu.Lock()
		loading = append(loading, s.Loading)
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() { done <- store.Refresh(context.Background()) }()
	<-svc.arrived
	svc.release(0, listResult{jobs: jobsNamed("A")})
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(loading) != 2 || !loading[0] || loading[1] {
		t.Fatalf("expected [true false], got %v", loading)
	}
}
