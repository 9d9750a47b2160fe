package node

import "github.com/npipeline/npipeline/engine/runctx"

// Transform maps one input item to zero or one output items. Execute's
// bool return is the "present" flag standing in for an Option<Out>: Go has
// no option type, so this (value, ok, error) triple follows the same
// convention the rest of the codebase uses for a fallible, possibly-absent
// result. Returning ok=false drops the item without error.
//
// Transforms are stateless by default; any state a concrete implementation
// needs must be declared on the struct explicitly and is owned per-node,
// per-run.
type Transform[In, Out any] interface {
	Execute(ctx *runctx.Context, item In) (Out, bool, error)
}

// TransformFunc adapts a plain function to a Transform.
type TransformFunc[In, Out any] func(ctx *runctx.Context, item In) (Out, bool, error)

func (f TransformFunc[In, Out]) Execute(ctx *runctx.Context, item In) (Out, bool, error) {
	return f(ctx, item)
}
