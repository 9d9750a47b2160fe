package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// XRateLimiter wraps golang.org/x/time/rate's token bucket, for callers
// that need its smoother refill behavior (continuous, not Limiter's
// once-per-call refill computation) — connectors throttling against an
// external API's published rate limit are the main user.
type XRateLimiter struct {
	limiter *rate.Limiter
}

// NewXRateLimiter builds an XRateLimiter allowing ratePerSecond sustained
// events with a burst of burst.
func NewXRateLimiter(ratePerSecond float64, burst int) *XRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &XRateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Allow is the non-blocking check.
func (l *XRateLimiter) Allow() bool { return l.limiter.Allow() }

// Wait blocks until a token is available or ctx is cancelled.
func (l *XRateLimiter) Wait(ctx context.Context) error { return l.limiter.Wait(ctx) }
