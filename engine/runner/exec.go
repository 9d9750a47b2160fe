package runner

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/npipeline/npipeline/engine/dag"
	"github.com/npipeline/npipeline/engine/node"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// driveTransform turns a transform node's input pipe into its lazily
// produced output pipe, honoring the node's declared ExecutionStrategy.
func (r *Runner) driveTransform(rc *Context, n *dag.NodeInfo, in pipe.ErasedPipe) pipe.ErasedPipe {
	if n.ExecStrategy.Kind == node.ExecBoundedParallel {
		return r.boundedParallelTransform(rc, n, in)
	}
	return r.sequentialTransform(rc, n, in)
}

// sequentialTransform processes one item at a time, inline, preserving
// input order by construction.
func (r *Runner) sequentialTransform(rc *Context, n *dag.NodeInfo, in pipe.ErasedPipe) pipe.ErasedPipe {
	return &lazyErasedPipe{
		name: n.ID,
		enumerate: func(ctx context.Context) pipe.ErasedIterator {
			it := in.Enumerate(ctx)
			return erasedIterFunc(func(ctx context.Context) (any, bool, error) {
				for {
					item, ok, err := it.Next(ctx)
					if err != nil {
						return nil, false, err
					}
					if !ok {
						return nil, false, nil
					}
					_, span := otel.Tracer("engine/runner").Start(ctx, "transform."+n.ID)
					start := rc.Now()
					out, present, xerr := n.ExecTransform(rc, item)
					r.metrics.nodeDuration(n.ID).Since(start)
					if xerr != nil {
						span.RecordError(xerr)
						span.SetStatus(codes.Error, xerr.Error())
						span.End()
						skip, fatal := r.applyPolicy(rc, n, item, xerr)
						if fatal != nil {
							return nil, false, fatal
						}
						if skip {
							continue
						}
					} else {
						span.End()
					}
					if !present {
						continue
					}
					r.metrics.itemsProcessed(n.ID).Inc()
					return out, true, nil
				}
			})
		},
		dispose: in.Dispose,
	}
}

// boundedParallelTransform keeps up to n.ExecStrategy.K items in flight,
// using a semaphore-channel + WaitGroup loop adapted to a
// pull-based producer instead of a known-length slice. When
// PreserveOrdering is set, each launched item's result channel is queued
// in launch order and the consumer waits on them in that order —
// equivalent to a ring-buffered reorder buffer without needing to track
// sequence numbers explicitly.
func (r *Runner) boundedParallelTransform(rc *Context, n *dag.NodeInfo, in pipe.ErasedPipe) pipe.ErasedPipe {
	k := n.ExecStrategy.K
	if k < 1 {
		k = 1
	}
	preserve := n.ExecStrategy.PreserveOrdering

	type slot struct {
		item    any
		out     any
		present bool
		err     error
	}

	run := func(ctx context.Context, item any) slot {
		_, span := otel.Tracer("engine/runner").Start(ctx, "transform."+n.ID)
		defer span.End()
		start := rc.Now()
		out, present, xerr := n.ExecTransform(rc, item)
		r.metrics.nodeDuration(n.ID).Since(start)
		if xerr != nil {
			span.RecordError(xerr)
			span.SetStatus(codes.Error, xerr.Error())
		}
		return slot{item: item, out: out, present: present, err: xerr}
	}

	return &lazyErasedPipe{
		name: n.ID,
		enumerate: func(ctx context.Context) pipe.ErasedIterator {
			it := in.Enumerate(ctx)
			sem := make(chan struct{}, k)
			var wg sync.WaitGroup

			if preserve {
				order := make(chan chan slot, k)
				go func() {
					defer close(order)
					for {
						item, ok, err := it.Next(ctx)
						if err != nil {
							ch := make(chan slot, 1)
							ch <- slot{err: err}
							select {
							case order <- ch:
							case <-ctx.Done():
							}
							return
						}
						if !ok {
							return
						}
						ch := make(chan slot, 1)
						select {
						case order <- ch:
						case <-ctx.Done():
							return
						}
						select {
						case sem <- struct{}{}:
						case <-ctx.Done():
							return
						}
						wg.Add(1)
						go func(item any, ch chan slot) {
							defer wg.Done()
							defer func() { <-sem }()
							ch <- run(ctx, item)
						}(item, ch)
					}
				}()
				return erasedIterFunc(func(ctx context.Context) (any, bool, error) {
					for {
						select {
						case ch, ok := <-order:
							if !ok {
								return nil, false, nil
							}
							s := <-ch
							if s.err != nil {
								skip, fatal := r.applyPolicy(rc, n, s.item, s.err)
								if fatal != nil {
									return nil, false, fatal
								}
								if skip {
									continue
								}
							}
							if !s.present {
								continue
							}
							r.metrics.itemsProcessed(n.ID).Inc()
							return s.out, true, nil
						case <-ctx.Done():
							return nil, false, ctx.Err()
						}
					}
				})
			}

			results := make(chan slot, k)
			go func() {
				for {
					item, ok, err := it.Next(ctx)
					if err != nil {
						wg.Wait()
						results <- slot{err: err}
						close(results)
						return
					}
					if !ok {
						wg.Wait()
						close(results)
						return
					}
					select {
					case sem <- struct{}{}:
					case <-ctx.Done():
						wg.Wait()
						close(results)
						return
					}
					wg.Add(1)
					go func(item any) {
						defer wg.Done()
						defer func() { <-sem }()
						select {
						case results <- run(ctx, item):
						case <-ctx.Done():
						}
					}(item)
				}
			}()
			return erasedIterFunc(func(ctx context.Context) (any, bool, error) {
				for {
					select {
					case s, ok := <-results:
						if !ok {
							return nil, false, nil
						}
						if s.err != nil {
							skip, fatal := r.applyPolicy(rc, n, s.item, s.err)
							if fatal != nil {
								return nil, false, fatal
							}
							if skip {
								continue
							}
						}
						if !s.present {
							continue
						}
						r.metrics.itemsProcessed(n.ID).Inc()
						return s.out, true, nil
					case <-ctx.Done():
						return nil, false, ctx.Err()
					}
				}
			})
		},
		dispose: in.Dispose,
	}
}

// withRetryAccounting wraps a transform's output in pkg/pipe.Counting so
// that a resilient wrapper's exhausted retries are stashed under
// ParamLastRetryExhaustedException before the error reaches the
// downstream consumer, per spec §4.1/§4.5.1.
func (r *Runner) withRetryAccounting(rc *Context, n *dag.NodeInfo, p pipe.ErasedPipe) pipe.ErasedPipe {
	counter := &pipe.Counter{}
	counted := pipe.Counting[any](adaptErased(p), counter, func(err error) {
		rc.Params.Store(ParamLastRetryExhaustedException, err)
		r.metrics.retryExhaustions(n.ID).Inc()
	})
	return pipe.Erase[any](counted)
}
