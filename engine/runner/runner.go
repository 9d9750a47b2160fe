package runner

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/npipeline/npipeline/engine/dag"
	"github.com/npipeline/npipeline/engine/node"
	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/fn"
	"github.com/npipeline/npipeline/pkg/metrics"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// RunOption configures a Runner at construction time.
type RunOption func(*runConfig)

type runConfig struct {
	services           Services
	metricsRegistry    *metrics.Registry
	deadLetterHandlers map[string]func(*Context, DeadLetterItem) error
}

// WithServices attaches the clock/logger/lineage-collector bag every
// node's Context carries for this run.
func WithServices(s Services) RunOption {
	return func(c *runConfig) { c.services = s }
}

// WithMetricsRegistry points this run's counters/gauges/histograms at an
// existing registry — e.g. one an admin HTTP server already exposes —
// instead of a private registry scoped to this run alone.
func WithMetricsRegistry(reg *metrics.Registry) RunOption {
	return func(c *runConfig) { c.metricsRegistry = reg }
}

// WithDeadLetterHandler registers the function invoked for every item a
// PolicyDeadLetter node rejects, keyed by that node's declared
// dag.WithDeadLetter id. A node configured for PolicyDeadLetter whose id
// has no registered handler falls back to PolicySkip.
func WithDeadLetterHandler(id string, handler func(ctx *Context, item DeadLetterItem) error) RunOption {
	return func(c *runConfig) {
		if c.deadLetterHandlers == nil {
			c.deadLetterHandlers = make(map[string]func(*Context, DeadLetterItem) error)
		}
		c.deadLetterHandlers[id] = handler
	}
}

// Runner executes one finalized graph. It carries no state beyond a
// single run's configuration — create a fresh Runner per run, matching
// spec's "no global singletons" requirement.
type Runner struct {
	cfg     runConfig
	metrics *runMetrics
}

// NewRunner builds a Runner from opts.
func NewRunner(opts ...RunOption) *Runner {
	cfg := runConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	return &Runner{cfg: cfg, metrics: newRunMetrics(cfg.metricsRegistry)}
}

// Run executes g to completion:
//
//  1. plan — g.Order() already holds the topological order Finalize computed.
//  2. materializeSources / materializeEdges — collapsed into one pass
//     over that order, since each node's input is fully determined by its
//     already-materialized upstream nodes.
//  3. drive — every sink is launched concurrently via pkg/fn.FanOutResult;
//     sources, transforms, and aggregates are pulled through by that demand.
//  4. cancellation — the first sink error (or ctx's own cancellation)
//     signals the run's single CancelCauseFunc.
//  5. collect — Run returns the first fatal error, or nil once every sink
//     has drained its input to completion.
//  6. dispose — every materialized pipe is disposed in reverse
//     topological order.
func (r *Runner) Run(ctx context.Context, g *dag.Graph) error {
	spanCtx, span := otel.Tracer("engine/runner").Start(ctx, "run")
	span.SetAttributes(attribute.Int("npipeline.node_count", len(g.Order())))
	defer span.End()

	rc := runctx.New(spanCtx, r.cfg.services)
	span.SetAttributes(attribute.String("npipeline.run_id", rc.RunID.String()))
	defer rc.Cancel(nil)

	order := g.Order()
	pipes, err := r.materialize(rc, g, order)
	if err != nil {
		rc.Cancel(err)
		disposeReverse(order, pipes)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var sinkFns []func() fn.Result[struct{}]
	for _, id := range order {
		n := g.Node(id)
		if n.Kind != node.KindSink {
			continue
		}
		nodeID, info, input := id, n, pipes[id]
		sinkFns = append(sinkFns, func() fn.Result[struct{}] {
			gauge := r.metrics.activeGoroutines(nodeID)
			gauge.Inc()
			defer gauge.Dec()
			if err := info.ExecSink(rc, input); err != nil {
				return fn.Err[struct{}](&RunError{NodeID: nodeID, Err: err})
			}
			return fn.Ok(struct{}{})
		})
	}

	var runErr error
	if len(sinkFns) > 0 {
		if _, err := fn.FanOutResult(sinkFns...).Unwrap(); err != nil {
			runErr = err
		}
	}
	if runErr != nil {
		rc.Cancel(runErr)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	} else if ctx.Err() != nil {
		runErr = ctx.Err()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	disposeReverse(order, pipes)
	return runErr
}

// materialize builds, for every node in topological order, the pipe that
// both feeds its downstream edges (sources, transforms, aggregates) or is
// retained purely so Run can dispose and drive it (sinks).
func (r *Runner) materialize(rc *Context, g *dag.Graph, order []string) (map[string]pipe.ErasedPipe, error) {
	pipes := make(map[string]pipe.ErasedPipe, len(order))
	for _, id := range order {
		n := g.Node(id)
		switch n.Kind {
		case node.KindSource:
			p, err := n.InitSource(rc)
			if err != nil {
				return pipes, &node.SourceInitError{NodeID: n.ID, Err: err}
			}
			pipes[id] = applyFanOut(n, p)

		case node.KindTransform:
			in := mergeInbound(g, n, pipes)
			out := r.driveTransform(rc, n, in)
			if n.HasRetryDelay {
				out = r.withRetryAccounting(rc, n, out)
			}
			pipes[id] = applyFanOut(n, out)

		case node.KindAggregate:
			in := mergeInbound(g, n, pipes)
			out := r.aggregateNode(rc, n, in)
			pipes[id] = applyFanOut(n, out)

		case node.KindSink:
			pipes[id] = mergeInbound(g, n, pipes)
		}
	}
	return pipes, nil
}

// applyPolicy interprets n's declared ErrorPolicy for an item that failed
// with err. skip tells the caller to drop the item and continue; a
// non-nil fatal must propagate as the node's terminal error.
func (r *Runner) applyPolicy(rc *Context, n *dag.NodeInfo, item any, err error) (skip bool, fatal error) {
	if n.HasRetryDelay && (n.ErrorPolicy == node.PolicySkip || n.ErrorPolicy == node.PolicyDeadLetter) {
		// An error this policy absorbs never reaches the node's counting
		// pipe, so a retry exhaustion is recorded here instead.
		var re pipe.RetryExhausted
		if errors.As(err, &re) {
			rc.Params.Store(ParamLastRetryExhaustedException, err)
			r.metrics.retryExhaustions(n.ID).Inc()
		}
	}
	switch n.ErrorPolicy {
	case node.PolicySkip:
		r.metrics.errorsByPolicy(n.ID, "skip").Inc()
		return true, nil
	case node.PolicyDeadLetter:
		r.metrics.errorsByPolicy(n.ID, "dead-letter").Inc()
		if handler, ok := r.cfg.deadLetterHandlers[n.DeadLetterID]; ok && n.DeadLetterID != "" {
			if herr := handler(rc, DeadLetterItem{NodeID: n.ID, Item: item, Err: err}); herr != nil {
				return false, herr
			}
		}
		return true, nil
	default:
		r.metrics.errorsByPolicy(n.ID, "fail").Inc()
		return false, err
	}
}

func disposeReverse(order []string, pipes map[string]pipe.ErasedPipe) {
	for i := len(order) - 1; i >= 0; i-- {
		if p, ok := pipes[order[i]]; ok && p != nil {
			p.Dispose()
		}
	}
}
