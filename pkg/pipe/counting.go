package pipe

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
)

// Counter tracks how many items a Counting pipe has delivered.
type Counter struct{ n atomic.Int64 }

// Count returns the number of items delivered so far.
func (c *Counter) Count() int64 { return c.n.Load() }

// RetryExhausted is implemented by errors that represent a resilient
// wrapper's exhausted retry attempts (engine/node.RetryExhaustedError
// implements it). Counting pipes special-case such errors per spec §4.1:
// the error is stashed in the run's context parameters under a well-known
// key before being re-raised. pkg/pipe does not depend on engine/node, so
// the relationship is expressed as an interface rather than a concrete
// type, avoiding an import cycle.
type RetryExhausted interface {
	error
	RetryExhausted() bool
}

// counting wraps an inner pipe, incrementing counter per delivered item.
// If the inner pipe fails with a RetryExhausted error, onRetryExhausted is
// invoked with it before the error is returned to the caller.
type counting[T any] struct {
	inner            Pipe[T]
	counter          *Counter
	onRetryExhausted func(error)
}

// Counting wraps inner, incrementing counter for every item successfully
// delivered. onRetryExhausted may be nil; when non-nil it is called with
// any error from inner that satisfies RetryExhausted, exactly once, before
// that error propagates to the consumer.
func Counting[T any](inner Pipe[T], counter *Counter, onRetryExhausted func(error)) Pipe[T] {
	if counter == nil {
		counter = &Counter{}
	}
	return &counting[T]{inner: inner, counter: counter, onRetryExhausted: onRetryExhausted}
}

func (p *counting[T]) Enumerate(ctx context.Context) Iterator[T] {
	inner := p.inner.Enumerate(ctx)
	return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
		item, ok, err := inner.Next(ctx)
		if err != nil {
			var re RetryExhausted
			if p.onRetryExhausted != nil && errors.As(err, &re) {
				p.onRetryExhausted(err)
			}
			var zero T
			return zero, false, err
		}
		if ok {
			p.counter.n.Add(1)
		}
		return item, ok, nil
	})
}

func (p *counting[T]) ElementType() reflect.Type { return p.inner.ElementType() }
func (p *counting[T]) Name() string              { return p.inner.Name() }
func (p *counting[T]) Dispose() error            { return p.inner.Dispose() }
