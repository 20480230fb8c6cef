package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTracker() *Tracker {
	return NewTracker(nil, zerolog.Nop())
}

func TestTracker_DefaultState(t *testing.T) {
	tracker := newTestTracker()

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 100 {
		t.Errorf("Remaining = %d, want 100", state.Remaining)
	}
	if !state.IsHealthy {
		t.Error("default state should be healthy")
	}
}

func TestTracker_UpdateFromHeaders(t *testing.T) {
	tests := []struct {
		name          string
		headers       map[string]string
		wantRemaining int
		wantLimit     int
		wantHealthy   bool
		wantErr       bool
		wantUnchanged bool
	}{
		{
			name:          "healthy window",
			headers:       map[string]string{HeaderLimit: "100", HeaderRemaining: "99", HeaderReset: "10"},
			wantRemaining: 99,
			wantLimit:     100,
			wantHealthy:   true,
		},
		{
			name:          "warning window",
			headers:       map[string]string{HeaderRemaining: "4", HeaderReset: "10"},
			wantRemaining: 4,
		},
		{
			name:          "retry after forces empty window",
			headers:       map[string]string{HeaderRemaining: "50", HeaderRetryAfter: "5"},
			wantRemaining: 0,
		},
		{
			name:          "no headers",
			headers:       map[string]string{},
			wantUnchanged: true,
		},
		{
			name:    "bad remaining",
			headers: map[string]string{HeaderRemaining: "lots", HeaderReset: "10"},
			wantErr: true,
		},
		{
			name:    "missing reset",
			headers: map[string]string{HeaderRemaining: "10"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker()
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			err := tracker.UpdateFromHeaders(context.Background(), h)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			state, _ := tracker.GetState(context.Background())
			if tt.wantUnchanged {
				if state.Remaining != 100 {
					t.Errorf("state changed without headers: %+v", state)
				}
				return
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if state.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", state.Limit, tt.wantLimit)
			}
			if state.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestTracker_ShouldAllowRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy allows", func(t *testing.T) {
		tracker := newTestTracker()
		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed {
			t.Fatalf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
		}
	})

	t.Run("exhausted blocks", func(t *testing.T) {
		tracker := newTestTracker()
		h := http.Header{}
		h.Set(HeaderRemaining, "0")
		h.Set(HeaderReset, "30")
		if err := tracker.UpdateFromHeaders(ctx, h); err != nil {
			t.Fatal(err)
		}
		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if allowed {
			t.Error("request should be blocked while window is exhausted")
		}
	})

	t.Run("warning throttles", func(t *testing.T) {
		tracker := newTestTracker()
		tracker.SetThrottleDelay(20 * time.Millisecond)
		h := http.Header{}
		h.Set(HeaderRemaining, "3")
		h.Set(HeaderReset, "30")
		if err := tracker.UpdateFromHeaders(ctx, h); err != nil {
			t.Fatal(err)
		}

		start := time.Now()
		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed {
			t.Fatalf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("throttle delay not applied: %v", elapsed)
		}
	})

	t.Run("throttle honours context", func(t *testing.T) {
		tracker := newTestTracker()
		tracker.SetThrottleDelay(time.Hour)
		h := http.Header{}
		h.Set(HeaderRemaining, "3")
		h.Set(HeaderReset, "30")
		if err := tracker.UpdateFromHeaders(ctx, h); err != nil {
			t.Fatal(err)
		}

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		allowed, err := tracker.ShouldAllowRequest(cctx)
		if allowed || err == nil {
			t.Errorf("ShouldAllowRequest() = %v, %v; want false, context error", allowed, err)
		}
	})
}
