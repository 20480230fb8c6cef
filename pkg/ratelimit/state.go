// Package ratelimit paces outgoing catalog requests and tracks the rate limit
// the catalog API advertises through its X-RateLimit-* response headers.
package ratelimit

import (
	"time"
)

// Redis keys for shared rate limit state.
const (
	RedisKeyRemaining      = "catalog:rate_limit:remaining"
	RedisKeyLimit          = "catalog:rate_limit:limit"
	RedisKeyResetTimestamp = "catalog:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "catalog:rate_limit:last_update"
)

// Thresholds for rate limit decisions, in requests remaining in the window.
const (
	// RemainingThresholdCritical blocks requests until the window resets.
	RemainingThresholdCritical = 1

	// RemainingThresholdWarning throttles requests.
	RemainingThresholdWarning = 10

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 25
)

// State is the server-advertised rate limit window.
type State struct {
	// Remaining is the number of requests left in the current window
	// (X-RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// Limit is the window size (X-RateLimit-Limit). Zero when not advertised.
	Limit int `json:"limit"`

	// ResetAt is when the window resets, derived from X-RateLimit-Reset or
	// Retry-After (seconds from now).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`

	IsHealthy bool `json:"is_healthy"`
}

// defaultState is assumed until the server reports otherwise.
func defaultState() *State {
	now := time.Now()
	return &State{
		Remaining:  100,
		ResetAt:    now.Add(60 * time.Second),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsBlock returns true if requests should be held until the window resets.
// A window that has already reset never blocks.
func (s *State) NeedsBlock() bool {
	return s.Remaining < RemainingThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < RemainingThresholdWarning && !s.NeedsBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy
}
