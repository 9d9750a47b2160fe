package runner

import (
	"context"
	"sync"

	"github.com/npipeline/npipeline/engine/dag"
	"github.com/npipeline/npipeline/engine/node"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// multicastSubscriberCapacity bounds each multicast subscriber's queue
// when a node declares a fan-out factor. Per spec §5, a full queue blocks
// the pump and, transitively, the upstream producer; this is a tuning
// default, not a correctness requirement.
const multicastSubscriberCapacity = 64

// applyFanOut wraps p in a multicast when n declares a fan-out factor
// greater than 1, reusing pkg/pipe's typed Multicast machinery through the
// any-erasure adapter rather than reimplementing its pump/subscriber
// bookkeeping a second time for the erased boundary.
func applyFanOut(n *dag.NodeInfo, p pipe.ErasedPipe) pipe.ErasedPipe {
	if n.FanOut <= 1 {
		return p
	}
	mc := pipe.NewMulticast[any](n.ID, adaptErased(p), n.FanOut, multicastSubscriberCapacity)
	return pipe.Erase[any](mc)
}

// mergeInbound composes a node's inbound edges' upstream pipes into its
// single input pipe per the node's declared merge strategy. A node with
// exactly one inbound edge needs no merge pipe at all.
func mergeInbound(g *dag.Graph, n *dag.NodeInfo, outputs map[string]pipe.ErasedPipe) pipe.ErasedPipe {
	edges := g.InboundEdges(n.ID)
	if len(edges) == 0 {
		return nil
	}
	inputs := make([]pipe.ErasedPipe, len(edges))
	for i, e := range edges {
		inputs[i] = outputs[e.From]
	}
	if len(inputs) == 1 {
		return inputs[0]
	}
	switch n.MergeStrategy.Kind {
	case node.MergeConcatenate:
		return erasedConcatenate(n.ID, inputs)
	case node.MergeZip:
		return erasedZip(n.ID, inputs)
	default:
		return erasedInterleave(n.ID, inputs)
	}
}

// erasedConcatenate drains each input fully, in edge order, before moving
// to the next. Erased-boundary counterpart of pkg/pipe.Concatenate.
func erasedConcatenate(name string, inputs []pipe.ErasedPipe) pipe.ErasedPipe {
	return &lazyErasedPipe{
		name: name,
		enumerate: func(ctx context.Context) pipe.ErasedIterator {
			idx := 0
			var cur pipe.ErasedIterator
			return erasedIterFunc(func(ctx context.Context) (any, bool, error) {
				for {
					if cur == nil {
						if idx >= len(inputs) {
							return nil, false, nil
						}
						cur = inputs[idx].Enumerate(ctx)
					}
					item, ok, err := cur.Next(ctx)
					if err != nil {
						return nil, false, err
					}
					if !ok {
						cur = nil
						idx++
						continue
					}
					return item, true, nil
				}
			})
		},
		dispose: disposeAll(inputs),
	}
}

// erasedInterleave spawns one goroutine per input draining it into a
// shared channel, delivering items in whatever order they become ready.
// Erased-boundary counterpart of pkg/pipe.Interleave.
func erasedInterleave(name string, inputs []pipe.ErasedPipe) pipe.ErasedPipe {
	return &lazyErasedPipe{
		name: name,
		enumerate: func(ctx context.Context) pipe.ErasedIterator {
			mergeCtx, cancel := context.WithCancel(ctx)
			type msg struct {
				item any
				err  error
			}
			ch := make(chan msg)
			var wg sync.WaitGroup
			wg.Add(len(inputs))
			for _, in := range inputs {
				go func(in pipe.ErasedPipe) {
					defer wg.Done()
					it := in.Enumerate(mergeCtx)
					for {
						item, ok, err := it.Next(mergeCtx)
						if err != nil {
							select {
							case ch <- msg{err: err}:
							case <-mergeCtx.Done():
							}
							return
						}
						if !ok {
							return
						}
						select {
						case ch <- msg{item: item}:
						case <-mergeCtx.Done():
							return
						}
					}
				}(in)
			}
			go func() {
				wg.Wait()
				close(ch)
			}()
			return erasedIterFunc(func(ctx context.Context) (any, bool, error) {
				select {
				case m, ok := <-ch:
					if !ok {
						cancel()
						return nil, false, nil
					}
					if m.err != nil {
						cancel()
						return nil, false, m.err
					}
					return m.item, true, nil
				case <-ctx.Done():
					cancel()
					return nil, false, ctx.Err()
				}
			})
		},
		dispose: disposeAll(inputs),
	}
}

// erasedZip pairs items positionally across every input as a []any,
// ending as soon as any input ends. Generalizes pkg/pipe.Zip from a fixed
// pair of two typed inputs to N erased ones.
func erasedZip(name string, inputs []pipe.ErasedPipe) pipe.ErasedPipe {
	return &lazyErasedPipe{
		name: name,
		enumerate: func(ctx context.Context) pipe.ErasedIterator {
			iters := make([]pipe.ErasedIterator, len(inputs))
			for i, in := range inputs {
				iters[i] = in.Enumerate(ctx)
			}
			return erasedIterFunc(func(ctx context.Context) (any, bool, error) {
				tuple := make([]any, len(iters))
				for i, it := range iters {
					item, ok, err := it.Next(ctx)
					if err != nil {
						return nil, false, err
					}
					if !ok {
						return nil, false, nil
					}
					tuple[i] = item
				}
				return tuple, true, nil
			})
		},
		dispose: disposeAll(inputs),
	}
}
