package pipe

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// unboundedBufferSize is the channel capacity substituted for a
// subscriber declared with capacity <= 0 ("unbounded" per spec). Go
// channels have no true unbounded mode; this is large enough that no
// realistic subscriber count×rate combination in this engine's test
// scenarios will saturate it, while still bounding memory.
const unboundedBufferSize = 1 << 16

// BranchMetrics reports the static shape of a Multicast pipe's fan-out, as
// required by spec §4.1.
type BranchMetrics struct {
	SubscriberCount int
	// SubscriberCapacity is the capacity each subscriber was configured
	// with; 0 means "unbounded" (backed in practice by unboundedBufferSize).
	SubscriberCapacity int
}

type multicastMsg[T any] struct {
	item T
	err  error
	eof  bool
}

type subscriberState[T any] struct {
	ch       chan multicastMsg[T]
	done     chan struct{}
	doneOnce sync.Once
}

func (s *subscriberState[T]) cancel() {
	s.doneOnce.Do(func() { close(s.done) })
}

// MulticastPipe wraps a source pipe into a single producer ("pump") that
// feeds N bounded per-subscriber queues. Each Enumerate call claims the
// next declared subscriber slot; claiming more than subscriberCount fails
// with ErrTooManySubscribers. The pump is a single goroutine, so a slow
// subscriber's full queue backpressures delivery to every other
// subscriber and, transitively, the upstream source — this is intentional
// per spec §5 ("a slow subscriber throttles the whole branch").
type MulticastPipe[T any] struct {
	name               string
	source             Pipe[T]
	subscriberCount    int
	subscriberCapacity int
	elemType           reflect.Type

	mu         sync.Mutex
	subs       []*subscriberState[T]
	nextSub    int
	started    bool
	pumpCancel context.CancelFunc
	disposed   atomic.Bool
}

// NewMulticast wraps source so that up to subscriberCount independent
// consumers each observe the same producer order. subscriberCapacity <= 0
// means unbounded (see unboundedBufferSize).
func NewMulticast[T any](name string, source Pipe[T], subscriberCount int, subscriberCapacity int) *MulticastPipe[T] {
	if subscriberCount < 1 {
		subscriberCount = 1
	}
	bufSize := subscriberCapacity
	if bufSize <= 0 {
		bufSize = unboundedBufferSize
	}
	subs := make([]*subscriberState[T], subscriberCount)
	for i := range subs {
		subs[i] = &subscriberState[T]{
			ch:   make(chan multicastMsg[T], bufSize),
			done: make(chan struct{}),
		}
	}
	return &MulticastPipe[T]{
		name:               name,
		source:             source,
		subscriberCount:    subscriberCount,
		subscriberCapacity: subscriberCapacity,
		elemType:           source.ElementType(),
		subs:               subs,
	}
}

// Metrics returns the branch's static fan-out shape.
func (m *MulticastPipe[T]) Metrics() BranchMetrics {
	return BranchMetrics{SubscriberCount: m.subscriberCount, SubscriberCapacity: m.subscriberCapacity}
}

func (m *MulticastPipe[T]) Enumerate(ctx context.Context) Iterator[T] {
	m.mu.Lock()
	if m.disposed.Load() {
		m.mu.Unlock()
		return failingIterator[T](ErrDisposed)
	}
	if m.nextSub >= m.subscriberCount {
		m.mu.Unlock()
		return failingIterator[T](ErrTooManySubscribers)
	}
	sub := m.subs[m.nextSub]
	m.nextSub++
	if !m.started {
		m.started = true
		pumpCtx, cancel := context.WithCancel(context.Background())
		m.pumpCancel = cancel
		go m.pump(pumpCtx)
	}
	m.mu.Unlock()

	return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
		var zero T
		select {
		case <-ctx.Done():
			sub.cancel()
			return zero, false, ErrCancelled
		case msg, chOk := <-sub.ch:
			if !chOk {
				return zero, false, ErrDisposed
			}
			if msg.err != nil {
				return zero, false, msg.err
			}
			if msg.eof {
				return zero, false, nil
			}
			return msg.item, true, nil
		}
	})
}

func (m *MulticastPipe[T]) pump(ctx context.Context) {
	it := m.source.Enumerate(ctx)
	for {
		item, ok, err := it.Next(ctx)
		if err != nil {
			m.deliverToAll(multicastMsg[T]{err: err})
			return
		}
		if !ok {
			m.deliverToAll(multicastMsg[T]{eof: true})
			return
		}
		m.deliverToAll(multicastMsg[T]{item: item})
	}
}

// deliverToAll sends msg to every subscriber, in declaration order.
// Delivery to a cancelled subscriber is skipped without blocking; delivery
// to a live subscriber whose queue is full blocks the pump (and therefore
// every later subscriber in this pass, and the upstream source) until
// space frees up or that subscriber cancels.
func (m *MulticastPipe[T]) deliverToAll(msg multicastMsg[T]) {
	for _, s := range m.subs {
		select {
		case s.ch <- msg:
		case <-s.done:
		}
	}
}

func (m *MulticastPipe[T]) ElementType() reflect.Type { return m.elemType }
func (m *MulticastPipe[T]) Name() string              { return m.name }

// Dispose cancels the pump and every subscriber's queue. Idempotent.
func (m *MulticastPipe[T]) Dispose() error {
	if !m.disposed.CompareAndSwap(false, true) {
		return nil
	}
	m.mu.Lock()
	cancel := m.pumpCancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	for _, s := range m.subs {
		s.cancel()
	}
	return m.source.Dispose()
}
