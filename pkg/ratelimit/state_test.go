package ratelimit

import (
	"testing"
	"time"
)

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *State
		maxAge   time.Duration
		expected bool
	}{
		{"fresh state", &State{LastUpdate: time.Now()}, 5 * time.Minute, false},
		{"stale state", &State{LastUpdate: time.Now().Add(-10 * time.Minute)}, 5 * time.Minute, true},
		{"just under max age", &State{LastUpdate: time.Now().Add(-4 * time.Minute)}, 5 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Thresholds(t *testing.T) {
	future := time.Now().Add(30 * time.Second)
	past := time.Now().Add(-time.Second)

	tests := []struct {
		name         string
		remaining    int
		resetAt      time.Time
		wantBlock    bool
		wantThrottle bool
		wantHealthy  bool
	}{
		{"plenty remaining", 80, future, false, false, true},
		{"at healthy threshold", RemainingThresholdHealthy, future, false, false, true},
		{"below warning", 5, future, false, true, false},
		{"exhausted", 0, future, true, false, false},
		{"exhausted but window reset", 0, past, false, false, false},
		{"low but window reset", 3, past, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{Remaining: tt.remaining, ResetAt: tt.resetAt}
			s.UpdateHealth()

			if got := s.NeedsBlock(); got != tt.wantBlock {
				t.Errorf("NeedsBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := s.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
			if s.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", s.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	s := &State{ResetAt: time.Now().Add(-time.Minute)}
	if got := s.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", got)
	}

	s.ResetAt = time.Now().Add(time.Minute)
	if got := s.TimeUntilReset(); got <= 0 || got > time.Minute {
		t.Errorf("TimeUntilReset() = %v, want (0, 1m]", got)
	}
}
