package client

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AutomationStatus
		want     bool
	}{
		{StatusInactive, StatusDeploying, true},
		{StatusInactive, StatusActive, false},
		{StatusDeploying, StatusActive, true},
		{StatusActive, StatusPaused, true},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusDeploying, false},
		{StatusInactive, StatusPaused, false},
		{StatusActive, StatusError, true},
		{StatusInactive, StatusError, true},
		{StatusError, StatusDeploying, true},
		{StatusError, StatusActive, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransition(t *testing.T) {
	next, err := StatusActive.Transition(StatusPaused)
	if err != nil || next != StatusPaused {
		t.Fatalf("active -> paused: got %s, %v", next, err)
	}

	same, err := StatusInactive.Transition(StatusPaused)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if same != StatusInactive {
		t.Errorf("status should be unchanged on rejection, got %s", same)
	}
}

func TestSchedulable(t *testing.T) {
	for _, s := range []AutomationStatus{StatusActive, StatusDeploying} {
		if !s.Schedulable() {
			t.Errorf("%s should be schedulable", s)
		}
	}
	for _, s := range []AutomationStatus{StatusInactive, StatusPaused, StatusError} {
		if s.Schedulable() {
			t.Errorf("%s should not be schedulable", s)
		}
	}
}
