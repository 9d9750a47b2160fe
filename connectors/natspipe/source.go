// Package natspipe is the one concrete illustration of the "connectors
// are specified only by the interfaces they expose/consume" contract
// (spec's core stays transport-agnostic; this package is the sample NATS
// binding, not a dependency of engine/node or engine/runner).
package natspipe

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/natsutil"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// Source implements node.Source[T] over a NATS subject, decoding each
// message's JSON body as T via pkg/natsutil.Subscribe. It is a pull-based
// wrapper around natsutil's push/callback subscription: a buffered
// channel bridges the two, with the subscription's natural flow control
// (NATS slow-consumer drops) standing in for pipe-level backpressure.
type Source[T any] struct {
	Conn    *nats.Conn
	Subject string
	// Backlog bounds how many decoded messages may be buffered ahead of
	// the pipe's consumer before the underlying subscription's
	// slow-consumer handling kicks in. Defaults to 64.
	Backlog int
}

// Initialize implements node.Source.
func (s Source[T]) Initialize(rc *runctx.Context) (pipe.Pipe[T], error) {
	backlog := s.Backlog
	if backlog <= 0 {
		backlog = 64
	}

	return pipe.Streaming[T]("natspipe.source:"+s.Subject, false, func(ctx context.Context) pipe.Iterator[T] {
		items := make(chan T, backlog)
		errs := make(chan error, 1)

		sub, err := natsutil.Subscribe[T](s.Conn, s.Subject, func(_ context.Context, v T) {
			select {
			case items <- v:
			case <-ctx.Done():
			}
		})
		if err != nil {
			errs <- err
			close(errs)
		} else {
			go func() {
				<-ctx.Done()
				_ = sub.Unsubscribe()
			}()
		}

		return pipe.IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
			var zero T
			select {
			case v := <-items:
				return v, true, nil
			case err, ok := <-errs:
				if ok {
					return zero, false, err
				}
				return zero, false, nil
			case <-ctx.Done():
				return zero, false, ctx.Err()
			}
		})
	}), nil
}
