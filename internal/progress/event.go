// Package progress carries byte-transfer progress for downloads and update
// installs, and tracks the single active results download.
package progress

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Event is a cumulative progress sample. Total <= 0 means the size is not
// known yet.
type Event struct {
	Label string
	Done  int64
	Total int64
}

type Func func(Event)

func (f Func) Emit(ev Event) {
	if f != nil {
		f(ev)
	}
}

// Percent returns done/total*100 clamped to [0,100]. ok is false when total
// is unknown and an indeterminate indicator should be shown.
func Percent(done, total int64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	pct := float64(done) / float64(total) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// Throttle limits how often fn sees events. The first event of a label and
// events that reach Total always pass, so consumers never miss a boundary.
func Throttle(fn Func, perSecond float64) Func {
	if fn == nil {
		return nil
	}
	if perSecond <= 0 {
		return fn
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	var (
		mu        sync.Mutex
		lastLabel string
		seen      bool
	)
	return func(ev Event) {
		mu.Lock()
		allow := limiter.AllowN(time.Now(), 1)
		boundary := !seen || ev.Label != lastLabel || (ev.Total > 0 && ev.Done >= ev.Total)
		seen = true
		lastLabel = ev.Label
		mu.Unlock()
		if allow || boundary {
			fn(ev)
		}
	}
}
