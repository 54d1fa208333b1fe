package progress

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nsg-job-manager/internal/model"
)

var ErrDownloadActive = errors.New("a download is already in progress")

type Snapshot struct {
	State          model.TrackerState
	Filename       string
	Downloaded     int64
	Total          int64
	BytesPerSecond float64
}

func (s Snapshot) Active() bool {
	return s.State == model.TrackerActive
}

func (s Snapshot) Percent() (float64, bool) {
	return Percent(s.Downloaded, s.Total)
}

// Tracker follows at most one results download. Events for a download are
// applied in arrival order; arrival order is assumed to be byte order.
type Tracker struct {
	mu  sync.Mutex
	now func() time.Time

	state      model.TrackerState
	filename   string
	downloaded int64
	total      int64

	startedAt time.Time
	// bytes of files finished earlier in the same download, for the rate
	carried int64
}

func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, state: model.TrackerIdle}
}

// Begin reserves the tracker for a new download. A second download while
// one is active is rejected.
func (t *Tracker) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == model.TrackerActive {
		return ErrDownloadActive
	}
	t.reset(model.TrackerActive, "")
	t.startedAt = t.now()
	return nil
}

// Start moves to Active with downloaded=0 for filename. A download already
// reserved through Begin keeps its start time.
func (t *Tracker) Start(filename string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != model.TrackerActive {
		t.reset(model.TrackerActive, filename)
		t.startedAt = t.now()
		return
	}
	t.switchFile(filename)
}

// Progress applies one event. Events received while Idle are dropped.
func (t *Tracker) Progress(ev Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != model.TrackerActive {
		return false
	}
	if ev.Label != t.filename {
		t.switchFile(ev.Label)
	}
	if t.total <= 0 && ev.Total > 0 {
		t.total = ev.Total
	}
	if ev.Done > t.downloaded {
		t.downloaded = ev.Done
	}
	if t.total > 0 && t.downloaded > t.total {
		t.downloaded = t.total
	}
	return true
}

func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset(model.TrackerIdle, "")
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		State:      t.state,
		Filename:   t.filename,
		Downloaded: t.downloaded,
		Total:      t.total,
	}
	if t.state == model.TrackerActive {
		elapsed := t.now().Sub(t.startedAt).Seconds()
		if elapsed > 0 {
			s.BytesPerSecond = float64(t.carried+t.downloaded) / elapsed
		}
	}
	return s
}

func (t *Tracker) switchFile(filename string) {
	if t.filename != "" && filename != t.filename {
		t.carried += t.downloaded
	}
	t.filename = filename
	t.downloaded = 0
	t.total = 0
}

func (t *Tracker) reset(state model.TrackerState, filename string) {
	t.state = state
	t.filename = filename
	t.downloaded = 0
	t.total = 0
	t.carried = 0
	t.startedAt = time.Time{}
}

// Render formats a snapshot as a single status line with a text bar.
func Render(s Snapshot, width int) string {
	if !s.Active() {
		return "no active download"
	}
	name := s.Filename
	if strings.TrimSpace(name) == "" {
		name = "preparing"
	}
	pct, ok := s.Percent()
	if !ok {
		return fmt.Sprintf("%s  %s  (size unknown)", name, FormatBytesIEC(s.Downloaded))
	}
	if width < 10 {
		width = 10
	}
	filled := int(pct / 100 * float64(width))
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	line := fmt.Sprintf("%s  [%s] %5.1f%%  %s/%s", name, bar, pct, FormatBytesIEC(s.Downloaded), FormatBytesIEC(s.Total))
	if eta := EstimateETA(s.Total, s.Downloaded, s.BytesPerSecond); eta != "" {
		line += "  eta " + eta
	}
	return line
}
