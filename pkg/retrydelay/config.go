package retrydelay

// Config is the validated-at-construction description of a retry-delay
// policy: a required Backoff plus an optional Jitter. The zero Jitter
// value is JitterNone, which spec treats as explicitly valid ("no
// jitter").
type Config struct {
	Backoff Backoff
	Jitter  Jitter
}

// Validate checks every field enforced at factory time, returning the
// first violation as an *InvalidArgumentError.
func (c Config) Validate() error {
	if err := c.Backoff.validate(); err != nil {
		return err
	}
	return c.Jitter.validate()
}
