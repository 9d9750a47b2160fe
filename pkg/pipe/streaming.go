package pipe

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Producer builds a fresh Iterator[T] for one enumeration of a Streaming
// pipe. It is invoked at most once unless Restartable is set.
type Producer[T any] func(ctx context.Context) Iterator[T]

// streaming wraps a user-supplied Producer. By contract it is single-shot:
// enumerating twice is only permitted when the caller has declared the
// producer Restartable (spec's open question on streaming-pipe
// restartability is resolved explicitly this way — see SPEC_FULL.md).
type streaming[T any] struct {
	name       string
	produce    Producer[T]
	restartable bool

	mu       sync.Mutex
	started  bool
	disposed atomic.Bool
	cancel   context.CancelFunc
}

// Streaming wraps produce as a Pipe. If restartable is false, a second
// Enumerate call yields an iterator that fails immediately with
// ErrDisposed instead of re-invoking produce.
func Streaming[T any](name string, restartable bool, produce Producer[T]) Pipe[T] {
	return &streaming[T]{name: name, produce: produce, restartable: restartable}
}

func (p *streaming[T]) Enumerate(ctx context.Context) Iterator[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed.Load() {
		return failingIterator[T](ErrDisposed)
	}
	if p.started && !p.restartable {
		return failingIterator[T](ErrDisposed)
	}
	p.started = true

	enumCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	inner := p.produce(enumCtx)

	return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
		var zero T
		if p.disposed.Load() {
			return zero, false, ErrDisposed
		}
		select {
		case <-ctx.Done():
			return zero, false, ErrCancelled
		default:
		}
		nextCtx, stop := context.WithCancel(ctx)
		defer stop()
		defer context.AfterFunc(enumCtx, stop)()
		return inner.Next(nextCtx)
	})
}

func (p *streaming[T]) ElementType() reflect.Type { return elementType[T]() }
func (p *streaming[T]) Name() string              { return p.name }

// Dispose cancels the underlying iterator's context, if one is active, and
// marks the pipe disposed for all future calls.
func (p *streaming[T]) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disposed.Store(true)
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// failingIterator returns an Iterator whose Next always yields err.
func failingIterator[T any](err error) Iterator[T] {
	return IteratorFunc[T](func(context.Context) (T, bool, error) {
		var zero T
		return zero, false, err
	})
}
