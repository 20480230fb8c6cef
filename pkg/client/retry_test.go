package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1 (no retry by default)", cfg.MaxAttempts)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
}

func TestRetryConfig_BackoffFor(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, BackoffMultiplier: 2}

	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{6, 300 * time.Millisecond},
	}

	for _, tt := range tests {
		got := cfg.backoffFor(tt.attempt)
		lo := time.Duration(float64(tt.base) * 0.8)
		hi := time.Duration(float64(tt.base) * 1.2)
		if got < lo || got > hi {
			t.Errorf("backoffFor(%d) = %v, want within [%v, %v]", tt.attempt, got, lo, hi)
		}
	}
}

func TestRetryWithBackoff(t *testing.T) {
	serverErr := &CatalogError{StatusCode: 500, Class: ErrorClassServer, Message: "boom"}
	clientErr := &CatalogError{StatusCode: 404, Class: ErrorClassClient, Message: "nope"}

	tests := []struct {
		name         string
		attempts     int
		failures     int
		err          error
		wantCalls    int
		wantErr      bool
		wantExhausts bool
	}{
		{"success first try", 3, 0, nil, 1, false, false},
		{"single attempt policy", 1, 5, serverErr, 1, true, false},
		{"recovers after retries", 3, 2, serverErr, 3, false, false},
		{"exhausts", 3, 5, serverErr, 3, true, true},
		{"client errors not retried", 3, 5, clientErr, 1, true, false},
		{"zero attempts treated as one", 0, 5, serverErr, 1, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), fastRetry(tt.attempts), zerolog.Nop(), func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrRetryExhausted); got != tt.wantExhausts {
				t.Errorf("errors.Is(err, ErrRetryExhausted) = %v, want %v", got, tt.wantExhausts)
			}
			if err != nil && !errors.Is(err, tt.err) {
				t.Errorf("underlying error lost: %v", err)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, BackoffMultiplier: 2}

	calls := 0
	err := retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
		calls++
		cancel()
		return &CatalogError{Class: ErrorClassNetwork}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
