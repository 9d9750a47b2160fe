// Command npipeline-demo runs a small end-to-end pipeline — a bounded
// integer source, a flaky doubling transform protected by retry-delay and
// dead-lettering, and a logging sink — to exercise engine/runner against
// a real graph instead of a unit test fixture.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/npipeline/npipeline/engine/dag"
	"github.com/npipeline/npipeline/engine/node"
	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/engine/runner"
	"github.com/npipeline/npipeline/pkg/metrics"
	"github.com/npipeline/npipeline/pkg/mid"
	"github.com/npipeline/npipeline/pkg/pipe"
	"github.com/npipeline/npipeline/pkg/retrydelay"
)

var met = metrics.New()

var (
	mDemoItemsGenerated = met.Counter("npipeline_demo_items_generated_total", "Items the demo source produced")
	mDemoItemsSunk      = met.Counter("npipeline_demo_items_sunk_total", "Items the demo sink received")
	mDemoDeadLettered   = met.Counter("npipeline_demo_dead_lettered_total", "Items routed to the demo dead-letter handler")
)

func main() {
	var (
		count       = flag.Int("count", 20, "number of integers the demo source produces")
		parallelism = flag.Int("parallelism", 4, "bounded-parallel worker count for the transform node")
		flakeRate   = flag.Float64("flake-rate", 0.3, "probability a transform attempt fails, to exercise retry-delay")
		adminPort   = flag.Int("admin-port", 9099, "port for the /metrics and /healthz admin server")
	)
	flag.Parse()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	serveAdmin(log, *adminPort)

	g, err := buildGraph(*count, *parallelism, *flakeRate)
	if err != nil {
		log.Error("failed to build graph", "error", err)
		os.Exit(1)
	}

	r := runner.NewRunner(
		runner.WithServices(runner.Services{Logger: log}),
		runner.WithMetricsRegistry(met),
		runner.WithDeadLetterHandler("demo-dlq", func(_ *runner.Context, item runner.DeadLetterItem) error {
			mDemoDeadLettered.Inc()
			log.Warn("dead-lettered item", "node", item.NodeID, "item", item.Item, "error", item.Err)
			return nil
		}),
	)

	start := time.Now()
	if err := r.Run(ctx, g); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
	log.Info("run complete", "elapsed", time.Since(start))
}

func buildGraph(count, parallelism int, flakeRate float64) (*dag.Graph, error) {
	b := dag.NewBuilder()

	src := dag.AddSource(b, node.SourceFunc[int](func(_ *runctx.Context) (pipe.Pipe[int], error) {
		items := make([]int, count)
		for i := range items {
			items[i] = i
			mDemoItemsGenerated.Inc()
		}
		return pipe.InMemory("demo.ints", items), nil
	}))

	rng := rand.New(rand.NewSource(1))
	tr := dag.AddTransform(b, node.TransformFunc[int, int](func(_ *runctx.Context, item int) (int, bool, error) {
		if rng.Float64() < flakeRate {
			return 0, false, fmt.Errorf("demo: transient failure doubling %d", item)
		}
		return item * 2, true, nil
	}),
		dag.WithID("doubler"),
		dag.WithExecutionStrategy(node.BoundedParallel(parallelism, true)),
		dag.WithRetryDelay(retrydelay.Config{
			Backoff: retrydelay.Exponential(10*time.Millisecond, 2, time.Second),
			Jitter:  retrydelay.FullJitter(),
		}, 3),
		dag.WithErrorPolicy(node.PolicyDeadLetter),
		dag.WithDeadLetter("demo-dlq"),
	)

	snk := dag.AddSink(b, node.SinkFunc[int](func(ctx *runctx.Context, in pipe.Pipe[int]) error {
		it := in.Enumerate(ctx.Ctx())
		for {
			item, ok, err := it.Next(ctx.Ctx())
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			mDemoItemsSunk.Inc()
			ctx.Logger().Info("sunk item", "value", item)
		}
	}))

	if err := dag.Connect[int](b, src, tr); err != nil {
		return nil, err
	}
	if err := dag.Connect[int](b, tr, snk); err != nil {
		return nil, err
	}
	return b.Finalize()
}

func serveAdmin(log *slog.Logger, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	handler := mid.Chain(mux, mid.Logger(log), mid.Recover(log), mid.OTel("npipeline-demo"))

	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Info("admin server listening", "addr", addr)
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Error("admin server stopped", "error", err)
		}
	}()
}
