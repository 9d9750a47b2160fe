package runner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/npipeline/npipeline/engine/dag"
	"github.com/npipeline/npipeline/engine/node"
	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/pipe"
)

type timedInt struct {
	v  int
	at time.Time
}

type sumByParity struct{}

func (sumByParity) KeyOf(item timedInt) bool        { return item.v%2 == 0 }
func (sumByParity) Seed() int                       { return 0 }
func (sumByParity) Fold(acc int, item timedInt) int { return acc + item.v }
func (sumByParity) Merge(a, b int) int              { return a + b }
func (sumByParity) Finalize(key bool, acc int) []int {
	return []int{acc}
}
func (sumByParity) Window() node.Window {
	return node.Tumbling(time.Hour, func(item any) time.Time { return item.(timedInt).at }, 0)
}

func TestRunAggregateFoldsPerKeyWithinOneWindow(t *testing.T) {
	b := dag.NewBuilder()
	base := time.Unix(0, 0)
	items := []timedInt{
		{v: 1, at: base},
		{v: 2, at: base.Add(time.Minute)},
		{v: 3, at: base.Add(2 * time.Minute)},
		{v: 4, at: base.Add(3 * time.Minute)},
	}

	src := dag.AddSource(b, node.SourceFunc[timedInt](func(ctx *runctx.Context) (pipe.Pipe[timedInt], error) {
		return pipe.InMemory("timed", items), nil
	}))
	agg := dag.AddAggregate[timedInt, bool, int, int](b, sumByParity{})

	var mu sync.Mutex
	var sunk []int
	snk := dag.AddSink(b, collectingSink(&mu, &sunk))

	if err := dag.Connect[timedInt](b, src, agg); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := dag.Connect[int](b, agg, snk); err != nil {
		t.Fatalf("connect: %v", err)
	}

	g, err := b.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	r := NewRunner()
	if err := r.Run(context.Background(), g); err != nil {
		t.Fatalf("run: %v", err)
	}

	sort.Ints(sunk)
	if len(sunk) != 2 || sunk[0] != 4 || sunk[1] != 6 {
		t.Fatalf("expected [4 6] (odds=1+3, evens=2+4), got %v", sunk)
	}
}

type countByParity struct{}

func (countByParity) KeyOf(item timedInt) bool         { return item.v%2 == 0 }
func (countByParity) Seed() int                        { return 0 }
func (countByParity) Fold(acc int, item timedInt) int  { return acc + 1 }
func (countByParity) Merge(a, b int) int               { return a + b }
func (countByParity) Finalize(key bool, acc int) []int { return []int{acc} }
func (countByParity) Window() node.Window {
	return node.Tumbling(time.Minute, func(item any) time.Time { return item.(timedInt).at }, 0)
}

// TestRunAggregateIsLazyOverUnboundedSource proves materialize does not
// drain an aggregate's entire input before the run's sinks start pulling:
// the fake source below never exhausts on its own, so a synchronous
// drain-to-completion implementation would hang inside materialize and
// never reach the sink-driving stage. The sink here only reads the first
// finalized window before returning, so if the aggregate is properly lazy,
// only the handful of items needed to close that window are ever pulled
// from the source.
func TestRunAggregateIsLazyOverUnboundedSource(t *testing.T) {
	var produced int64
	unboundedSource := node.SourceFunc[timedInt](func(ctx *runctx.Context) (pipe.Pipe[timedInt], error) {
		base := time.Unix(0, 0)
		return pipe.Streaming[timedInt]("unbounded", false, func(_ context.Context) pipe.Iterator[timedInt] {
			return pipe.IteratorFunc[timedInt](func(_ context.Context) (timedInt, bool, error) {
				n := atomic.AddInt64(&produced, 1)
				return timedInt{v: int(n), at: base.Add(time.Duration(n) * 10 * time.Second)}, true, nil
			})
		}), nil
	})

	b := dag.NewBuilder()
	src := dag.AddSource(b, unboundedSource)
	agg := dag.AddAggregate[timedInt, bool, int, int](b, countByParity{})

	firstWindow := make(chan int, 1)
	snk := dag.AddSink(b, node.SinkFunc[int](func(ctx *runctx.Context, in pipe.Pipe[int]) error {
		it := in.Enumerate(ctx.Ctx())
		item, ok, err := it.Next(ctx.Ctx())
		if err != nil {
			return err
		}
		if ok {
			firstWindow <- item
		}
		return nil
	}))

	if err := dag.Connect[timedInt](b, src, agg); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := dag.Connect[int](b, agg, snk); err != nil {
		t.Fatalf("connect: %v", err)
	}

	g, err := b.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r := NewRunner()
	runDone := make(chan error, 1)
	go func() { runDone <- r.Run(ctx, g) }()

	select {
	case <-firstWindow:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the first finalized window; materialize likely blocked draining the unbounded source")
	}

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not complete after its sink returned")
	}

	if got := atomic.LoadInt64(&produced); got > 100 {
		t.Fatalf("expected only a handful of items pulled from the unbounded source, got %d", got)
	}
}
