package retrydelay

import (
	"math/rand"
	"time"
)

// DelayFunc computes the duration to wait before retry attempt n (1-based).
// It is safe for concurrent use; every jitter computation, including
// Decorrelated's state update, runs behind a mutex that also guards the
// shared RNG.
type DelayFunc func(attempt int) time.Duration

// Disposer releases any resources a DelayFunc holds. Stateless policies
// return a no-op Disposer.
type Disposer func()

// Option configures New. Source overrides the RNG source, primarily for
// deterministic tests.
type Option func(*factoryOptions)

type factoryOptions struct {
	source rand.Source
}

// WithSource pins the jitter RNG to a specific source, e.g.
// rand.NewSource(42), so delay sequences are reproducible in tests.
func WithSource(src rand.Source) Option {
	return func(o *factoryOptions) { o.source = src }
}

// New validates cfg and returns a DelayFunc plus a Disposer. It fails with
// *InvalidArgumentError if cfg does not pass Config.Validate.
func New(cfg Config, opts ...Option) (DelayFunc, Disposer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	fo := factoryOptions{}
	for _, opt := range opts {
		opt(&fo)
	}
	if fo.source == nil {
		fo.source = rand.NewSource(time.Now().UnixNano())
	}
	rng := rand.New(fo.source)

	state := newJitterState(cfg.Jitter, rng)
	base := cfg.Backoff.baseDelay()

	delay := func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := cfg.Backoff.at(attempt)
		return state.apply(d, base)
	}
	dispose := func() {}
	return delay, dispose, nil
}
