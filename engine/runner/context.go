// Package runner drives a finalized engine/dag.Graph: it materializes
// each node's pipes, applies fan-in merge strategies, launches execution
// bounded by each node's execution strategy, and propagates cancellation
// and disposal across the run.
package runner

import (
	"context"

	"github.com/npipeline/npipeline/engine/runctx"
)

// Context is the per-run context every node observes. It is defined in
// engine/runctx, not here, because engine/node's Source/Transform/Sink
// signatures need the context shape and engine/runner needs engine/node to
// drive execution — defining it in either package directly would create an
// import cycle. The alias keeps Context as the name callers of this
// package reach for.
type Context = runctx.Context

// Services is the optional service bag threaded through a run's Context.
type Services = runctx.Services

// NewContext starts a run context derived from parent.
func NewContext(parent context.Context, services Services) *Context {
	return runctx.New(parent, services)
}
