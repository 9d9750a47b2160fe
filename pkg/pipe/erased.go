package pipe

import (
	"context"
	"reflect"
)

// ErasedIterator and ErasedPipe type-erase a Pipe[T] to carry items as
// `any`. The builder stores one node implementation per distinct (In, Out)
// type pair behind non-generic closures — Go methods cannot be generic, so
// a collection of heterogeneous Pipe[T] cannot be stored directly. Erase
// and Unerase are the boundary: every typed Pipe[T] is boxed once when it
// crosses into the builder/runner's type-erased plumbing and unboxed once
// when a concrete node needs it back.
type ErasedIterator interface {
	Next(ctx context.Context) (item any, ok bool, err error)
}

type ErasedPipe interface {
	Enumerate(ctx context.Context) ErasedIterator
	Dispose() error
	Name() string
}

type erasedIteratorFunc func(ctx context.Context) (any, bool, error)

func (f erasedIteratorFunc) Next(ctx context.Context) (any, bool, error) { return f(ctx) }

type erasedPipe[T any] struct {
	inner Pipe[T]
}

// Erase boxes a typed Pipe[T] into an ErasedPipe.
func Erase[T any](p Pipe[T]) ErasedPipe {
	return &erasedPipe[T]{inner: p}
}

func (e *erasedPipe[T]) Enumerate(ctx context.Context) ErasedIterator {
	it := e.inner.Enumerate(ctx)
	return erasedIteratorFunc(func(ctx context.Context) (any, bool, error) {
		item, ok, err := it.Next(ctx)
		return item, ok, err
	})
}

func (e *erasedPipe[T]) Dispose() error { return e.inner.Dispose() }
func (e *erasedPipe[T]) Name() string   { return e.inner.Name() }

type unerasedPipe[T any] struct {
	inner ErasedPipe
	name  string
}

// Unerase unboxes an ErasedPipe back into a typed Pipe[T]. Panics if an
// item of the wrong dynamic type is ever delivered — which would indicate
// a builder-time type-compatibility bug, not a runtime data error, since
// dag.Connect only wires edges whose reflect.Type already matched.
func Unerase[T any](p ErasedPipe) Pipe[T] {
	return &unerasedPipe[T]{inner: p}
}

func (u *unerasedPipe[T]) Enumerate(ctx context.Context) Iterator[T] {
	it := u.inner.Enumerate(ctx)
	return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
		raw, ok, err := it.Next(ctx)
		var zero T
		if err != nil || !ok {
			return zero, ok, err
		}
		typed, assignable := raw.(T)
		if !assignable {
			panic("pipe: Unerase received item of unexpected dynamic type")
		}
		return typed, true, nil
	})
}

func (u *unerasedPipe[T]) ElementType() reflect.Type { return elementType[T]() }
func (u *unerasedPipe[T]) Dispose() error            { return u.inner.Dispose() }
func (u *unerasedPipe[T]) Name() string              { return u.inner.Name() }
