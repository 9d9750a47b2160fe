package pipe

import (
	"context"
	"reflect"
)

// Pair is the element type produced by Zip.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Concatenate enumerates each input pipe fully, in order, before moving to
// the next. It preserves the relative order of items within each input.
func Concatenate[T any](name string, inputs ...Pipe[T]) Pipe[T] {
	elemType := elementType[T]()
	if len(inputs) > 0 {
		elemType = inputs[0].ElementType()
	}
	return &concatenated[T]{name: name, inputs: inputs, elemType: elemType}
}

type concatenated[T any] struct {
	name     string
	inputs   []Pipe[T]
	elemType reflect.Type
}

func (p *concatenated[T]) Enumerate(ctx context.Context) Iterator[T] {
	idx := 0
	var cur Iterator[T]
	return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
		var zero T
		for {
			select {
			case <-ctx.Done():
				return zero, false, ErrCancelled
			default:
			}
			if cur == nil {
				if idx >= len(p.inputs) {
					return zero, false, nil
				}
				cur = p.inputs[idx].Enumerate(ctx)
			}
			item, ok, err := cur.Next(ctx)
			if err != nil {
				return zero, false, err
			}
			if !ok {
				cur = nil
				idx++
				continue
			}
			return item, true, nil
		}
	})
}

func (p *concatenated[T]) ElementType() reflect.Type { return p.elemType }
func (p *concatenated[T]) Name() string              { return p.name }
func (p *concatenated[T]) Dispose() error {
	var firstErr error
	for _, in := range p.inputs {
		if err := in.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// interleaveMsg carries an item (or terminal signal) from one branch
// goroutine to the Interleave consumer.
type interleaveMsg[T any] struct {
	item T
	err  error
	done bool
}

// Interleave drives every input concurrently and delivers items to the
// consumer in whatever order they arrive, with no fairness guarantee
// beyond "every live branch eventually gets a turn". The first error from
// any branch ends the merge for all branches.
func Interleave[T any](name string, inputs ...Pipe[T]) Pipe[T] {
	elemType := elementType[T]()
	if len(inputs) > 0 {
		elemType = inputs[0].ElementType()
	}
	return &interleaved[T]{name: name, inputs: inputs, elemType: elemType}
}

type interleaved[T any] struct {
	name     string
	inputs   []Pipe[T]
	elemType reflect.Type
}

func (p *interleaved[T]) Enumerate(ctx context.Context) Iterator[T] {
	if len(p.inputs) == 0 {
		return failingIterator[T](nil)
	}
	mergeCtx, cancel := context.WithCancel(ctx)
	ch := make(chan interleaveMsg[T], len(p.inputs))

	remaining := len(p.inputs)
	for _, in := range p.inputs {
		go func(in Pipe[T]) {
			it := in.Enumerate(mergeCtx)
			for {
				item, ok, err := it.Next(mergeCtx)
				if err != nil {
					select {
					case ch <- interleaveMsg[T]{err: err}:
					case <-mergeCtx.Done():
					}
					return
				}
				if !ok {
					select {
					case ch <- interleaveMsg[T]{done: true}:
					case <-mergeCtx.Done():
					}
					return
				}
				select {
				case ch <- interleaveMsg[T]{item: item}:
				case <-mergeCtx.Done():
					return
				}
			}
		}(in)
	}

	closed := false
	return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
		var zero T
		if closed {
			return zero, false, nil
		}
		for remaining > 0 {
			select {
			case <-ctx.Done():
				cancel()
				closed = true
				return zero, false, ErrCancelled
			case msg := <-ch:
				if msg.err != nil {
					cancel()
					closed = true
					return zero, false, msg.err
				}
				if msg.done {
					remaining--
					continue
				}
				return msg.item, true, nil
			}
		}
		cancel()
		closed = true
		return zero, false, nil
	})
}

func (p *interleaved[T]) ElementType() reflect.Type { return p.elemType }
func (p *interleaved[T]) Name() string              { return p.name }
func (p *interleaved[T]) Dispose() error {
	var firstErr error
	for _, in := range p.inputs {
		if err := in.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Zip pairs corresponding items from a and b, stopping as soon as either
// side is exhausted or errors.
func Zip[A, B any](name string, a Pipe[A], b Pipe[B]) Pipe[Pair[A, B]] {
	return &zipped[A, B]{name: name, a: a, b: b}
}

type zipped[A, B any] struct {
	name string
	a    Pipe[A]
	b    Pipe[B]
}

func (p *zipped[A, B]) Enumerate(ctx context.Context) Iterator[Pair[A, B]] {
	ia := p.a.Enumerate(ctx)
	ib := p.b.Enumerate(ctx)
	return IteratorFunc[Pair[A, B]](func(ctx context.Context) (Pair[A, B], bool, error) {
		var zero Pair[A, B]
		select {
		case <-ctx.Done():
			return zero, false, ErrCancelled
		default:
		}
		av, aok, aerr := ia.Next(ctx)
		if aerr != nil {
			return zero, false, aerr
		}
		if !aok {
			return zero, false, nil
		}
		bv, bok, berr := ib.Next(ctx)
		if berr != nil {
			return zero, false, berr
		}
		if !bok {
			return zero, false, nil
		}
		return Pair[A, B]{First: av, Second: bv}, true, nil
	})
}

func (p *zipped[A, B]) ElementType() reflect.Type {
	return reflect.TypeOf((*Pair[A, B])(nil)).Elem()
}
func (p *zipped[A, B]) Name() string { return p.name }
func (p *zipped[A, B]) Dispose() error {
	errA := p.a.Dispose()
	errB := p.b.Dispose()
	if errA != nil {
		return errA
	}
	return errB
}
