package runner

import (
	"context"
	"reflect"

	"github.com/npipeline/npipeline/pkg/pipe"
)

// erasedIterFunc adapts a plain function to a pipe.ErasedIterator, the
// erased-boundary counterpart of pipe.IteratorFunc.
type erasedIterFunc func(ctx context.Context) (any, bool, error)

func (f erasedIterFunc) Next(ctx context.Context) (any, bool, error) { return f(ctx) }

// lazyErasedPipe is every pipe the runner builds internally: merges,
// transform/aggregate outputs. Its Enumerate closure does no work until a
// consumer actually pulls through it, preserving the pull-based laziness
// pkg/pipe's typed variants give Pipe[T].
type lazyErasedPipe struct {
	name      string
	enumerate func(ctx context.Context) pipe.ErasedIterator
	dispose   func() error
}

func (p *lazyErasedPipe) Enumerate(ctx context.Context) pipe.ErasedIterator { return p.enumerate(ctx) }

func (p *lazyErasedPipe) Dispose() error {
	if p.dispose == nil {
		return nil
	}
	return p.dispose()
}

func (p *lazyErasedPipe) Name() string { return p.name }

// erasedAsAnyPipe presents an ErasedPipe as a pipe.Pipe[any] so that the
// typed pkg/pipe machinery (Multicast, Counting) can be reused at the
// erased boundary instead of being reimplemented for it.
type erasedAsAnyPipe struct {
	inner pipe.ErasedPipe
}

func adaptErased(p pipe.ErasedPipe) pipe.Pipe[any] { return &erasedAsAnyPipe{inner: p} }

func (e *erasedAsAnyPipe) Enumerate(ctx context.Context) pipe.Iterator[any] {
	it := e.inner.Enumerate(ctx)
	return pipe.IteratorFunc[any](func(ctx context.Context) (any, bool, error) {
		return it.Next(ctx)
	})
}

func (e *erasedAsAnyPipe) ElementType() reflect.Type { return reflect.TypeOf((*any)(nil)).Elem() }
func (e *erasedAsAnyPipe) Dispose() error            { return e.inner.Dispose() }
func (e *erasedAsAnyPipe) Name() string              { return e.inner.Name() }

func disposeAll(inputs []pipe.ErasedPipe) func() error {
	return func() error {
		var first error
		for _, in := range inputs {
			if err := in.Dispose(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}
