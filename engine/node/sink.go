package node

import (
	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// Sink drains a pipe to completion. Sinks are terminal: a graph's
// topological order always ends at its sinks.
type Sink[In any] interface {
	Execute(ctx *runctx.Context, in pipe.Pipe[In]) error
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc[In any] func(ctx *runctx.Context, in pipe.Pipe[In]) error

func (f SinkFunc[In]) Execute(ctx *runctx.Context, in pipe.Pipe[In]) error { return f(ctx, in) }
