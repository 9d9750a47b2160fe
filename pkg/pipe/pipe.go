// Package pipe implements NPipeline's lazy, typed, asynchronously
// enumerable sequence abstraction: the DataPipe layer. A Pipe produces
// items on demand through a pull-based Iterator; every suspension point
// observes a context.Context so that cancellation is cooperative and
// immediate.
package pipe

import (
	"context"
	"reflect"
)

// Iterator is a pull-based cursor over a sequence of T. Next blocks until
// the next item is available, the sequence is exhausted (io.EOF-shaped via
// the ok return), the context is cancelled, or the producer fails.
type Iterator[T any] interface {
	// Next returns the next item. ok is false when the sequence is
	// exhausted with no error. A non-nil error always takes precedence
	// over ok.
	Next(ctx context.Context) (item T, ok bool, err error)
}

// IteratorFunc adapts a plain function to an Iterator.
type IteratorFunc[T any] func(ctx context.Context) (T, bool, error)

// Next implements Iterator.
func (f IteratorFunc[T]) Next(ctx context.Context) (T, bool, error) { return f(ctx) }

// Pipe is a lazy, possibly-infinite sequence of elements of type T, plus a
// diagnostic name, a runtime element-type descriptor, and an idempotent
// disposal contract. Pipes are single-consumer by default; Multicast (see
// multicast.go) is the explicit multi-consumer wrapper required by spec.
type Pipe[T any] interface {
	// Enumerate returns a fresh Iterator over the pipe's items. Whether a
	// second call is valid depends on the variant (see each file's
	// doc comment); InMemory and CappedReplayable are restartable by
	// contract, Streaming is single-shot unless explicitly declared
	// restartable by its caller.
	Enumerate(ctx context.Context) Iterator[T]

	// ElementType returns the runtime type descriptor for T, used by the
	// builder for edge type-compatibility checks and by type-erased
	// bridging between pipes of different origin.
	ElementType() reflect.Type

	// Dispose releases upstream resources. Idempotent; safe to call while
	// an enumeration is in progress, in which case it cancels it.
	Dispose() error

	// Name returns a diagnostic label for logs and traces.
	Name() string
}

// elementType returns the reflect.Type for T, including for interface
// types (reflect.TypeOf requires a non-nil value, so a *T indirection is
// used and then dereferenced).
func elementType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
