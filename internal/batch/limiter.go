package batch

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces analyses across all workers. A nil Limiter never waits.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns nil when requestsPerSecond is not positive.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until the next analysis may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
