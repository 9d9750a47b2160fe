package natspipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/natsutil"
	"github.com/npipeline/npipeline/pkg/pipe"
	"github.com/npipeline/npipeline/pkg/resilience"
)

// Sink implements node.Sink[T] by publishing each item as JSON to a NATS
// subject. A publish that fails is retried in place, the same idiom the
// teacher's deleted StartConsumer used for its header-counted re-delivery
// loop (here a local attempt counter instead of a re-queued message's
// header, since this sink owns the retry loop directly rather than
// bouncing the item back through NATS itself), up to MaxRetries; beyond
// that it is published to DLQSubject instead of failing the sink
// outright, since one undeliverable item should not abort an
// otherwise-healthy publish stream.
type Sink[T any] struct {
	Conn        *nats.Conn
	Subject     string
	DLQSubject  string
	MaxRetries  int
	RateLimiter *resilience.XRateLimiter
	// Breaker, if set, trips after a run of consecutive publish failures
	// and rejects further attempts until it cools down; an item rejected
	// by the open breaker skips its remaining retries and goes straight to
	// the DLQ path.
	Breaker *resilience.Breaker
}

type dlqEnvelope[T any] struct {
	Item  T      `json:"item"`
	Error string `json:"error"`
}

// Execute implements node.Sink.
func (s Sink[T]) Execute(rc *runctx.Context, in pipe.Pipe[T]) error {
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	it := in.Enumerate(rc.Ctx())
	for {
		item, ok, err := it.Next(rc.Ctx())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if s.RateLimiter != nil {
			if err := s.RateLimiter.Wait(rc.Ctx()); err != nil {
				return err
			}
		}
		s.publishWithRetry(rc, item, maxRetries)
	}
}

func (s Sink[T]) publish(ctx context.Context, item T) error {
	if s.Breaker == nil {
		return natsutil.Publish(ctx, s.Conn, s.Subject, item)
	}
	return s.Breaker.Call(ctx, func(ctx context.Context) error {
		return natsutil.Publish(ctx, s.Conn, s.Subject, item)
	})
}

func (s Sink[T]) publishWithRetry(rc *runctx.Context, item T, maxRetries int) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := s.publish(rc.Ctx(), item); err != nil {
			lastErr = err
			rc.Logger().Warn("natspipe: publish failed", "subject", s.Subject, "attempt", attempt, "error", err)
			if errors.Is(err, resilience.ErrCircuitOpen) {
				break
			}
			continue
		}
		return
	}
	if s.DLQSubject == "" {
		rc.Logger().Error("natspipe: publish exhausted retries, no DLQ configured, dropping item",
			"subject", s.Subject, "error", lastErr)
		return
	}
	data, err := json.Marshal(dlqEnvelope[T]{Item: item, Error: fmt.Sprint(lastErr)})
	if err != nil {
		rc.Logger().Error("natspipe: failed to marshal dead-lettered item", "error", err)
		return
	}
	if err := s.Conn.Publish(s.DLQSubject, data); err != nil {
		rc.Logger().Error("natspipe: DLQ publish failed", "subject", s.DLQSubject, "error", err)
	}
}
