package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	catalogRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	catalogRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"error_class"})

	catalogRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the transport retry policy.
type RetryConfig struct {
	// MaxAttempts includes the initial request. 1 disables retries.
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig performs a single attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// backoffFor returns the delay before attempt+1, with ±20% jitter.
func (rc RetryConfig) backoffFor(attempt int) time.Duration {
	backoff := rc.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * rc.BackoffMultiplier)
		if rc.MaxBackoff > 0 && backoff > rc.MaxBackoff {
			backoff = rc.MaxBackoff
			break
		}
	}
	return time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
}

// retryWithBackoff runs fn until it succeeds, returns a non-transient error,
// or MaxAttempts is reached.
func retryWithBackoff(ctx context.Context, rc RetryConfig, logger zerolog.Logger, fn func() error) error {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= rc.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !IsTransient(err) || attempt >= rc.MaxAttempts {
			break
		}

		class := string(ClassOf(err))
		delay := rc.backoffFor(attempt)
		catalogRetriesTotal.WithLabelValues(class).Inc()
		catalogRetryBackoffSeconds.WithLabelValues(class).Observe(delay.Seconds())

		logger.Debug().
			Str("error_class", class).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if rc.MaxAttempts > 1 && IsTransient(lastErr) {
		class := string(ClassOf(lastErr))
		catalogRetryExhaustedTotal.WithLabelValues(class).Inc()
		logger.Warn().
			Str("error_class", class).
			Int("max_attempts", rc.MaxAttempts).
			Msg("Retry attempts exhausted")
		return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, rc.MaxAttempts, lastErr)
	}

	return lastErr
}
