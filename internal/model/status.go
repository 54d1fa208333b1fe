package model

import "fmt"

type UpdateState string

const (
	UpdateIdle        UpdateState = "idle"
	UpdateChecking    UpdateState = "checking"
	UpdateNoUpdate    UpdateState = "no_update"
	UpdateAvailable   UpdateState = "available"
	UpdateInstalling  UpdateState = "installing"
	UpdateRelaunching UpdateState = "relaunching"
)

var allowedUpdateTransitions = map[UpdateState]map[UpdateState]bool{
	UpdateIdle: {
		UpdateChecking: true,
	},
	UpdateChecking: {
		UpdateNoUpdate:  true,
		UpdateAvailable: true,
		UpdateIdle:      true, // check failed
	},
	UpdateNoUpdate: {
		UpdateChecking: true,
	},
	UpdateAvailable: {
		UpdateChecking:   true, // re-check replaces the offer
		UpdateInstalling: true,
	},
	UpdateInstalling: {
		UpdateAvailable:   true, // install failed, retry without re-checking
		UpdateRelaunching: true,
	},
	UpdateRelaunching: {},
}

func IsKnownUpdateState(state UpdateState) bool {
	_, ok := allowedUpdateTransitions[state]
	return ok
}

func CanTransitionUpdate(from, to UpdateState) bool {
	next, ok := allowedUpdateTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsUpdateBusy reports whether an update operation is in flight.
func IsUpdateBusy(state UpdateState) bool {
	return state == UpdateChecking || state == UpdateInstalling || state == UpdateRelaunching
}

func TransitionUpdateState(current *UpdateState, to UpdateState) error {
	from := *current
	if !CanTransitionUpdate(from, to) {
		return fmt.Errorf("invalid update state transition: %q -> %q", from, to)
	}
	*current = to
	return nil
}

type TrackerState string

const (
	TrackerIdle   TrackerState = "idle"
	TrackerActive TrackerState = "active"
)
