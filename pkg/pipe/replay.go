package pipe

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// cappedReplayable materializes every item delivered to its first consumer
// into a bounded buffer; later enumerations replay from that buffer
// instead of re-driving the inner pipe. If the number of materialized
// items would ever exceed maxItems, materialization fails with
// ErrMaterializationOverflow — permanently: once overflowed, the buffer is
// an incomplete prefix and every subsequent enumeration reports the same
// error rather than silently replaying a truncated sequence. A negative
// maxItems means any materialization at all overflows, since the overflow
// check (len(buffer) >= maxItems) is true even before the first item.
type cappedReplayable[T any] struct {
	name     string
	inner    Pipe[T]
	maxItems int

	mu        sync.Mutex
	cond      *sync.Cond
	state     replayState
	buffer    []T
	failErr   error
	disposed  atomic.Bool
}

type replayState int

const (
	replayNotStarted replayState = iota
	replayInProgress
	replayDone
	replayFailed
)

// CappedReplayable wraps inner so that up to maxItems items are
// materialized into a buffer on first enumeration and replayed verbatim on
// every subsequent enumeration.
func CappedReplayable[T any](name string, inner Pipe[T], maxItems int) Pipe[T] {
	p := &cappedReplayable[T]{name: name, inner: inner, maxItems: maxItems}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *cappedReplayable[T]) Enumerate(ctx context.Context) Iterator[T] {
	p.mu.Lock()
	if p.disposed.Load() {
		p.mu.Unlock()
		return failingIterator[T](ErrDisposed)
	}

	switch p.state {
	case replayNotStarted:
		p.state = replayInProgress
		p.mu.Unlock()
		return p.materializingIterator(ctx)
	case replayInProgress:
		// Another enumeration is materializing; wait for it to finish,
		// then replay (or report) whatever it produced.
		for p.state == replayInProgress {
			p.cond.Wait()
		}
		defer p.mu.Unlock()
		return p.postMaterializationIterator()
	default: // replayDone, replayFailed
		defer p.mu.Unlock()
		return p.postMaterializationIterator()
	}
}

// postMaterializationIterator must be called with p.mu held.
func (p *cappedReplayable[T]) postMaterializationIterator() Iterator[T] {
	if p.state == replayFailed {
		return failingIterator[T](p.failErr)
	}
	buf := p.buffer
	idx := 0
	return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
		var zero T
		select {
		case <-ctx.Done():
			return zero, false, ErrCancelled
		default:
		}
		if idx >= len(buf) {
			return zero, false, nil
		}
		item := buf[idx]
		idx++
		return item, true, nil
	})
}

func (p *cappedReplayable[T]) materializingIterator(ctx context.Context) Iterator[T] {
	inner := p.inner.Enumerate(ctx)
	return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
		var zero T
		item, ok, err := inner.Next(ctx)
		if err != nil {
			p.finishMaterialization(nil, err)
			return zero, false, err
		}
		if !ok {
			p.finishMaterialization(nil, nil)
			return zero, false, nil
		}

		p.mu.Lock()
		if len(p.buffer) >= p.maxItems {
			p.mu.Unlock()
			p.finishMaterialization(nil, ErrMaterializationOverflow)
			return zero, false, ErrMaterializationOverflow
		}
		p.buffer = append(p.buffer, item)
		p.mu.Unlock()
		return item, true, nil
	})
}

func (p *cappedReplayable[T]) finishMaterialization(buffer []T, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != replayInProgress {
		return
	}
	if err != nil {
		p.state = replayFailed
		p.failErr = err
	} else {
		p.state = replayDone
	}
	p.cond.Broadcast()
}

func (p *cappedReplayable[T]) ElementType() reflect.Type { return p.inner.ElementType() }
func (p *cappedReplayable[T]) Name() string              { return p.name }

func (p *cappedReplayable[T]) Dispose() error {
	p.disposed.Store(true)
	return p.inner.Dispose()
}
