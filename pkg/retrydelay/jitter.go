package retrydelay

import (
	"math/rand"
	"sync"
	"time"
)

// JitterKind selects the randomized perturbation applied to a backoff
// delay.
type JitterKind int

const (
	JitterNone JitterKind = iota
	JitterFull
	JitterEqual
	JitterDecorrelated
)

// Jitter describes how a backoff delay is perturbed. Decorrelated holds its
// own Max/Multiplier distinct from the backoff's.
type Jitter struct {
	Kind JitterKind

	// Decorrelated only.
	Max        time.Duration
	Multiplier float64
}

// NoJitter applies no perturbation; it is the zero value's effective
// behavior but is provided for explicit construction.
func NoJitter() Jitter { return Jitter{Kind: JitterNone} }

// FullJitter returns a uniform random duration in [0, d].
func FullJitter() Jitter { return Jitter{Kind: JitterFull} }

// EqualJitter returns d/2 + uniform(0, d/2).
func EqualJitter() Jitter { return Jitter{Kind: JitterEqual} }

// DecorrelatedJitter returns min(uniform(base, previous*mul), max), where
// the first call uses the backoff's own delay and each subsequent call's
// "previous" is the duration that call itself returned.
func DecorrelatedJitter(max time.Duration, mul float64) Jitter {
	return Jitter{Kind: JitterDecorrelated, Max: max, Multiplier: mul}
}

func (j Jitter) validate() error {
	switch j.Kind {
	case JitterNone, JitterFull, JitterEqual:
		return nil
	case JitterDecorrelated:
		if j.Max <= 0 {
			return invalidArg("jitter.max", "must be > 0")
		}
		if j.Multiplier < 1.0 {
			return invalidArg("jitter.multiplier", "must be >= 1.0")
		}
		return nil
	default:
		return invalidArg("jitter.kind", "unknown jitter kind")
	}
}

// jitterState applies a Jitter to successive backoff delays. A mutex
// guards the shared RNG and Decorrelated jitter's "previous" value, the
// same pattern resilience.Breaker uses for its state machine.
type jitterState struct {
	jitter Jitter
	rng    *rand.Rand

	mu       sync.Mutex
	previous time.Duration
	started  bool
}

func newJitterState(j Jitter, rng *rand.Rand) *jitterState {
	return &jitterState{jitter: j, rng: rng}
}

// apply perturbs d, the backoff's pre-jitter delay for this attempt. base
// is the backoff's own base delay, used as Decorrelated's starting point.
func (s *jitterState) apply(d, base time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.jitter.Kind {
	case JitterNone:
		return d
	case JitterFull:
		return uniformDuration(s.rng, 0, d)
	case JitterEqual:
		half := d / 2
		return half + uniformDuration(s.rng, 0, d-half)
	case JitterDecorrelated:
		if !s.started {
			s.started = true
			s.previous = clampDuration(d, s.jitter.Max)
			return s.previous
		}
		upper := time.Duration(float64(s.previous) * s.jitter.Multiplier)
		next := uniformDuration(s.rng, base, upper)
		next = clampDuration(next, s.jitter.Max)
		s.previous = next
		return next
	default:
		return d
	}
}

func uniformDuration(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
}

func clampDuration(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	if d < 0 {
		return 0
	}
	return d
}
