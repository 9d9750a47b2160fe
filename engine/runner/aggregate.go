package runner

import (
	"context"
	"time"

	"github.com/npipeline/npipeline/engine/dag"
	"github.com/npipeline/npipeline/engine/node"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// keyState tracks one partition key's open accumulator and the window
// boundary it closes at.
type keyState struct {
	acc       any
	windowEnd time.Time
	lastSeen  time.Time
}

// windowEndFor computes the boundary a window opened by an item with
// extracted time ts closes at, for each of the three window kinds.
func windowEndFor(w node.Window, ts time.Time) time.Time {
	switch w.Kind {
	case node.WindowTumbling:
		start := ts.Truncate(w.Size)
		return start.Add(w.Size)
	case node.WindowSliding:
		return ts.Add(w.Size)
	case node.WindowSession:
		return ts.Add(w.Gap)
	default:
		return ts
	}
}

// aggregateNode folds in's items into per-key accumulators and finalizes a
// key's window once the observed watermark (minus MaxLateness) passes that
// window's boundary, exactly as pkg/pipe.Streaming's producer closures do:
// the fold runs in a goroutine feeding a channel, so the returned pipe is
// lazy like every other node kind in this package — materialize never
// blocks draining an aggregate's input, which matters when that input is
// an unbounded source and the aggregate's own sink hasn't started pulling
// yet. An item at or past its key's open window end finalizes that window
// and opens the next one. LateDataPolicy is honored for items whose time
// falls before the end of their key's already finalized and evicted
// window: LateDataDrop discards them, LateDataRoute folds them into a
// fresh reopened accumulator for that key instead of discarding.
func (r *Runner) aggregateNode(rc *Context, n *dag.NodeInfo, in pipe.ErasedPipe) pipe.ErasedPipe {
	agg := n.Aggregate

	return &lazyErasedPipe{
		name: n.ID,
		enumerate: func(ctx context.Context) pipe.ErasedIterator {
			type msg struct {
				item any
				err  error
			}
			ch := make(chan msg)

			go func() {
				defer close(ch)
				it := in.Enumerate(ctx)

				states := make(map[any]*keyState)
				closed := make(map[any]time.Time)
				var maxWatermark time.Time

				emit := func(key any, st *keyState) bool {
					for _, out := range agg.Finalize(key, st.acc) {
						select {
						case ch <- msg{item: out}:
						case <-ctx.Done():
							return false
						}
					}
					return true
				}

				evictClosed := func(except any) bool {
					for k, st := range states {
						if k == except {
							continue
						}
						if maxWatermark.Add(-agg.Window.MaxLateness).After(st.windowEnd) {
							if !emit(k, st) {
								return false
							}
							delete(states, k)
							closed[k] = st.windowEnd
						}
					}
					return true
				}

				for {
					item, ok, err := it.Next(ctx)
					if err != nil {
						select {
						case ch <- msg{err: err}:
						case <-ctx.Done():
						}
						return
					}
					if !ok {
						break
					}

					ts := agg.Window.WatermarkExtractor(item)
					if ts.After(maxWatermark) {
						maxWatermark = ts
					}
					key := agg.KeyOf(item)

					if end, wasClosed := closed[key]; wasClosed {
						if ts.Before(end) && agg.Window.LateData == node.LateDataDrop {
							continue
						}
						delete(closed, key)
					}

					st, exists := states[key]
					if !exists {
						st = &keyState{acc: agg.Seed(), windowEnd: windowEndFor(agg.Window, ts)}
						states[key] = st
					} else if (agg.Window.Kind == node.WindowSession && ts.Sub(st.lastSeen) > agg.Window.Gap) ||
						(agg.Window.Kind != node.WindowSession && !ts.Before(st.windowEnd)) {
						if !emit(key, st) {
							return
						}
						st = &keyState{acc: agg.Seed(), windowEnd: windowEndFor(agg.Window, ts)}
						states[key] = st
					}

					st.acc = agg.Fold(st.acc, item)
					st.lastSeen = ts
					if agg.Window.Kind == node.WindowSession {
						if end := windowEndFor(agg.Window, ts); end.After(st.windowEnd) {
							st.windowEnd = end
						}
					}
					if !evictClosed(key) {
						return
					}
				}

				for k, st := range states {
					if !emit(k, st) {
						return
					}
				}
			}()

			return erasedIterFunc(func(ctx context.Context) (any, bool, error) {
				select {
				case m, ok := <-ch:
					if !ok {
						return nil, false, nil
					}
					if m.err != nil {
						return nil, false, m.err
					}
					return m.item, true, nil
				case <-ctx.Done():
					return nil, false, ctx.Err()
				}
			})
		},
		dispose: in.Dispose,
	}
}
