package coordinator

import "nsg-job-manager/internal/model"

type EventKind string

const (
	JobsChanged      EventKind = "jobs_changed"
	DownloadProgress EventKind = "download_progress"
	DownloadComplete EventKind = "download_complete"
	UpdateChanged    EventKind = "update_changed"
	ToastsChanged    EventKind = "toasts_changed"
	SessionChanged   EventKind = "session_changed"
	SettingsChanged  EventKind = "settings_changed"
)

const eventBuffer = 256

// Event is a change signal. Consumers read current state through the
// coordinator's snapshot methods; payload fields are informational.
type Event struct {
	Kind     EventKind
	Progress *model.DownloadProgressEvent
	Path     string
	Err      error
}

// Events is the push channel consumed by the UI.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// publish never blocks the producer. When the buffer is full the signal is
// dropped; the next snapshot read still shows current state.
func (c *Coordinator) publish(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.WithField("event", ev.Kind).Debug("event buffer full; dropping signal")
	}
}
