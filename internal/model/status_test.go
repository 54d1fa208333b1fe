package model

import "testing"

func TestCanTransitionUpdate_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from UpdateState
		to   UpdateState
	}{
		{UpdateIdle, UpdateChecking},
		{UpdateChecking, UpdateAvailable},
		{UpdateChecking, UpdateNoUpdate},
		{UpdateChecking, UpdateIdle},
		{UpdateNoUpdate, UpdateChecking},
		{UpdateAvailable, UpdateInstalling},
		{UpdateAvailable, UpdateChecking},
		{UpdateInstalling, UpdateAvailable},
		{UpdateInstalling, UpdateRelaunching},
	}

	for _, tc := range cases {
		if !CanTransitionUpdate(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransitionUpdate_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from UpdateState
		to   UpdateState
	}{
		{UpdateIdle, UpdateInstalling},
		{UpdateChecking, UpdateChecking},
		{UpdateNoUpdate, UpdateInstalling},
		{UpdateInstalling, UpdateIdle},
		{UpdateInstalling, UpdateChecking},
		{UpdateRelaunching, UpdateIdle},
		{"not_a_state", UpdateChecking},
	}

	for _, tc := range cases {
		if CanTransitionUpdate(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionUpdateState_BlocksIllegalTransition(t *testing.T) {
	state := UpdateIdle
	if err := TransitionUpdateState(&state, UpdateRelaunching); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if state != UpdateIdle {
		t.Fatalf("state changed on rejected transition: %q", state)
	}
	if err := TransitionUpdateState(&state, UpdateChecking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != UpdateChecking {
		t.Fatalf("expected checking, got %q", state)
	}
}

func TestStringPtrBlankIsNil(t *testing.T) {
	if StringPtr("") != nil {
		t.Fatal("expected nil for blank value")
	}
	if got := StringValue(StringPtr("NEURON")); got != "NEURON" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}
