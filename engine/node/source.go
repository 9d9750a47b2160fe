package node

import (
	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// Source produces the pipeline's initial data. Its lifetime ends when the
// pipe it returns is disposed; a source that fails before ever returning a
// pipe reports a SourceInitError, while a failure partway through
// enumeration is a pipe failure carried by the returned pipe's Iterator.
type Source[Out any] interface {
	Initialize(ctx *runctx.Context) (pipe.Pipe[Out], error)
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc[Out any] func(ctx *runctx.Context) (pipe.Pipe[Out], error)

func (f SourceFunc[Out]) Initialize(ctx *runctx.Context) (pipe.Pipe[Out], error) { return f(ctx) }
