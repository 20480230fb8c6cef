package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Pacer spaces out outgoing requests with a token bucket.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing perSecond requests with the given burst.
// A non-positive perSecond disables pacing.
func NewPacer(perSecond float64, burst int) *Pacer {
	if perSecond <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	return nil
}

// Limit returns the configured requests per second.
func (p *Pacer) Limit() float64 {
	return float64(p.limiter.Limit())
}
