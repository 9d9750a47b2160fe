package retrydelay

import (
	"math"
	"time"
)

// BackoffKind selects the deterministic delay curve.
type BackoffKind int

const (
	BackoffFixed BackoffKind = iota
	BackoffLinear
	BackoffExponential
)

// Backoff is the deterministic part of a retry delay: it maps a 1-based
// attempt number to a duration, before any jitter is applied.
type Backoff struct {
	Kind BackoffKind

	// Fixed
	Delay time.Duration

	// Linear and Exponential share Base/Max; Linear additionally uses
	// Increment, Exponential uses Multiplier.
	Base       time.Duration
	Increment  time.Duration
	Multiplier float64
	Max        time.Duration
}

// Fixed returns a Backoff that always waits d.
func Fixed(d time.Duration) Backoff {
	return Backoff{Kind: BackoffFixed, Delay: d}
}

// Linear returns a Backoff of min(base + incr*(n-1), max).
func Linear(base, incr, max time.Duration) Backoff {
	return Backoff{Kind: BackoffLinear, Base: base, Increment: incr, Max: max}
}

// Exponential returns a Backoff of min(base * mul^(n-1), max).
func Exponential(base time.Duration, mul float64, max time.Duration) Backoff {
	return Backoff{Kind: BackoffExponential, Base: base, Multiplier: mul, Max: max}
}

func (b Backoff) validate() error {
	switch b.Kind {
	case BackoffFixed:
		if b.Delay <= 0 {
			return invalidArg("backoff.delay", "must be > 0")
		}
	case BackoffLinear:
		if b.Base <= 0 {
			return invalidArg("backoff.base", "must be > 0")
		}
		if b.Increment < 0 {
			return invalidArg("backoff.increment", "must be >= 0")
		}
		if b.Max < b.Base {
			return invalidArg("backoff.max", "must be >= base")
		}
	case BackoffExponential:
		if b.Base <= 0 {
			return invalidArg("backoff.base", "must be > 0")
		}
		if b.Multiplier < 1.0 {
			return invalidArg("backoff.multiplier", "must be >= 1.0")
		}
		if b.Max < b.Base {
			return invalidArg("backoff.max", "must be >= base")
		}
	default:
		return invalidArg("backoff.kind", "unknown backoff kind")
	}
	return nil
}

// at computes the pre-jitter delay for the given 1-based attempt.
func (b Backoff) at(attempt int) time.Duration {
	switch b.Kind {
	case BackoffFixed:
		return b.Delay
	case BackoffLinear:
		d := b.Base + b.Increment*time.Duration(attempt-1)
		if d > b.Max || d < 0 {
			return b.Max
		}
		return d
	case BackoffExponential:
		// Computed in float64 per spec; an overflowing power clamps to Max
		// rather than wrapping or producing +Inf/NaN into a Duration cast.
		scaled := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt-1))
		if math.IsInf(scaled, 0) || math.IsNaN(scaled) || scaled > float64(b.Max) {
			return b.Max
		}
		return time.Duration(scaled)
	default:
		return 0
	}
}

// baseDelay returns the backoff's configured base delay, used by
// Decorrelated jitter as its starting point.
func (b Backoff) baseDelay() time.Duration {
	switch b.Kind {
	case BackoffFixed:
		return b.Delay
	default:
		return b.Base
	}
}
