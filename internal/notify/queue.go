// Package notify holds short-lived status messages. Each message expires on
// its own timer; the UI renders whatever is still live.
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/model"
)

const DefaultTTL = 5 * time.Second

type timer interface {
	Stop() bool
}

type Config struct {
	TTL    time.Duration
	Now    func() time.Time
	After  func(d time.Duration, f func()) timer
	Logger logrus.FieldLogger
	// OnChange runs after a push or an expiry, outside the queue lock.
	OnChange func()
}

type entry struct {
	toast model.ToastMessage
	timer timer
}

type Queue struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	after    func(d time.Duration, f func()) timer
	logger   logrus.FieldLogger
	onChange func()
	entries  []entry
	closed   bool
}

func New(cfg Config) *Queue {
	q := &Queue{
		ttl:      cfg.TTL,
		now:      cfg.Now,
		after:    cfg.After,
		logger:   cfg.Logger,
		onChange: cfg.OnChange,
	}
	if q.ttl <= 0 {
		q.ttl = DefaultTTL
	}
	if q.now == nil {
		q.now = time.Now
	}
	if q.after == nil {
		q.after = func(d time.Duration, f func()) timer { return time.AfterFunc(d, f) }
	}
	if q.logger == nil {
		q.logger = logrus.StandardLogger()
	}
	return q
}

func (q *Queue) SetOnChange(fn func()) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Push appends a message and arms its expiry. Pushes after Close are dropped.
func (q *Queue) Push(message string, kind model.ToastKind) model.ToastMessage {
	message = strings.TrimSpace(message)
	if kind == "" {
		kind = model.ToastInfo
	}
	toast := model.ToastMessage{
		ID:      uuid.NewString(),
		Message: message,
		Kind:    kind,
		Expiry:  q.now().Add(q.ttl),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return toast
	}
	id := toast.ID
	t := q.after(q.ttl, func() { q.expire(id) })
	q.entries = append(q.entries, entry{toast: toast, timer: t})
	onChange := q.onChange
	q.mu.Unlock()

	q.logger.WithFields(logrus.Fields{"toast_id": id, "kind": kind}).Debug(message)
	if onChange != nil {
		onChange()
	}
	return toast
}

func (q *Queue) Success(message string) model.ToastMessage { return q.Push(message, model.ToastSuccess) }
func (q *Queue) Error(message string) model.ToastMessage   { return q.Push(message, model.ToastError) }
func (q *Queue) Info(message string) model.ToastMessage    { return q.Push(message, model.ToastInfo) }

func (q *Queue) expire(id string) {
	q.remove(id)
}

// Dismiss drops a message before its expiry. It reports whether the id was
// still live.
func (q *Queue) Dismiss(id string) bool {
	return q.remove(id)
}

func (q *Queue) remove(id string) bool {
	q.mu.Lock()
	removed := false
	for i, e := range q.entries {
		if e.toast.ID == id {
			e.timer.Stop()
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			removed = true
			break
		}
	}
	onChange := q.onChange
	closed := q.closed
	q.mu.Unlock()

	if removed && !closed && onChange != nil {
		onChange()
	}
	return removed
}

// Active returns live messages in push order. Entries whose expiry passed
// but whose timer has not fired yet are filtered here.
func (q *Queue) Active(now time.Time) []model.ToastMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.ToastMessage, 0, len(q.entries))
	for _, e := range q.entries {
		if now.Before(e.toast.Expiry) {
			out = append(out, e.toast)
		}
	}
	return out
}

// Latest returns the newest live message.
func (q *Queue) Latest(now time.Time) (model.ToastMessage, bool) {
	active := q.Active(now)
	if len(active) == 0 {
		return model.ToastMessage{}, false
	}
	return active[len(active)-1], true
}

// Close stops all pending expiry timers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		e.timer.Stop()
	}
	q.entries = nil
	q.closed = true
}
