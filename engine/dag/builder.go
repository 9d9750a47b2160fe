// Package dag implements the typed, fluent graph builder and its
// finalization checks: cycle detection, fan-rule validation, edge-type
// compatibility, weak connectivity, and dead-letter target validation,
// producing an immutable Graph for engine/runner to execute.
package dag

import (
	"fmt"
	"reflect"

	"github.com/npipeline/npipeline/engine/node"
	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/pipe"
	"github.com/npipeline/npipeline/pkg/retrydelay"
)

func elemType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// NodeOption configures a node at Add* time.
type NodeOption func(*NodeInfo)

// WithID overrides the default, kind-derived node id.
func WithID(id string) NodeOption { return func(n *NodeInfo) { n.ID = id } }

// WithErrorPolicy sets how the runner reacts to this node's unrecovered
// errors. Default is node.PolicyFail.
func WithErrorPolicy(p node.ErrorPolicy) NodeOption {
	return func(n *NodeInfo) { n.ErrorPolicy = p }
}

// WithExecutionStrategy sets this node's concurrency shape. Default is
// node.Sequential().
func WithExecutionStrategy(s node.ExecutionStrategy) NodeOption {
	return func(n *NodeInfo) { n.ExecStrategy = s }
}

// WithMergeStrategy sets how this node composes multiple inbound edges.
// Default is node.Interleave. Meaningless on sources (no inbound edges).
func WithMergeStrategy(s node.MergeStrategy) NodeOption {
	return func(n *NodeInfo) { n.MergeStrategy = s }
}

// WithRetryDelay attaches a resilient-execution retry policy to a
// transform node, making at most maxAttempts attempts in total.
func WithRetryDelay(cfg retrydelay.Config, maxAttempts int) NodeOption {
	return func(n *NodeInfo) { n.RetryDelay = cfg; n.HasRetryDelay = true; n.MaxAttempts = maxAttempts }
}

// WithDeadLetter names the node id this node routes failed items to under
// node.PolicyDeadLetter. Finalize rejects a dangling id; the routing itself
// happens at run time via runner.WithDeadLetterHandler, keyed by this same
// id, not through a graph edge — a dead-letter reject doesn't carry the
// item's static element type forward the way a Connect edge would, so the
// handler is a func(item any) rather than a typed downstream node.
func WithDeadLetter(nodeID string) NodeOption {
	return func(n *NodeInfo) { n.DeadLetterID = nodeID }
}

// WithFanOut declares how many multicast subscribers this node's output
// pipe must support. Default 1 (no multicast wrapping).
func WithFanOut(n int) NodeOption {
	return func(h *NodeInfo) { h.FanOut = n }
}

// OutputHandle is implemented by every handle type that can serve as a
// Connect source: SourceHandle, TransformHandle, AggregateHandle. Sealed
// to this package — callers can only obtain one from Add*.
type OutputHandle[T any] interface {
	outputID() string
}

// InputHandle is implemented by every handle type that can serve as a
// Connect destination: TransformHandle, AggregateHandle, SinkHandle.
type InputHandle[T any] interface {
	inputID() string
}

// SourceHandle identifies a source node and its output element type.
type SourceHandle[Out any] struct{ id string }

func (h SourceHandle[Out]) outputID() string { return h.id }
func (h SourceHandle[Out]) ID() string       { return h.id }

// TransformHandle identifies a transform node and its input/output types.
type TransformHandle[In, Out any] struct{ id string }

func (h TransformHandle[In, Out]) inputID() string  { return h.id }
func (h TransformHandle[In, Out]) outputID() string { return h.id }
func (h TransformHandle[In, Out]) ID() string       { return h.id }

// AggregateHandle identifies an aggregate node and its type parameters.
type AggregateHandle[In any, K comparable, Acc, Out any] struct{ id string }

func (h AggregateHandle[In, K, Acc, Out]) inputID() string  { return h.id }
func (h AggregateHandle[In, K, Acc, Out]) outputID() string { return h.id }
func (h AggregateHandle[In, K, Acc, Out]) ID() string       { return h.id }

// SinkHandle identifies a sink node and its input type.
type SinkHandle[In any] struct{ id string }

func (h SinkHandle[In]) inputID() string { return h.id }
func (h SinkHandle[In]) ID() string      { return h.id }

// Builder accumulates nodes and edges. It is not safe for concurrent use;
// build a graph in one goroutine, then share the finalized *Graph freely.
type Builder struct {
	nodes   map[string]*NodeInfo
	order   []string
	edges   []Edge
	errs    []error
	warn    []string
	anonSeq map[string]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:   make(map[string]*NodeInfo),
		anonSeq: make(map[string]int),
	}
}

func (b *Builder) assignID(h *NodeInfo, prefix string) {
	if h.ID != "" {
		return
	}
	b.anonSeq[prefix]++
	h.ID = fmt.Sprintf("%s-%d", prefix, b.anonSeq[prefix])
}

func (b *Builder) register(h *NodeInfo) {
	if _, exists := b.nodes[h.ID]; exists {
		b.errs = append(b.errs, configErrorf("duplicate node id %q", h.ID))
		return
	}
	b.nodes[h.ID] = h
	b.order = append(b.order, h.ID)
}

func defaultNodeInfo(kind node.Kind) *NodeInfo {
	return &NodeInfo{
		Kind:          kind,
		ErrorPolicy:   node.PolicyFail,
		ExecStrategy:  node.Sequential(),
		MergeStrategy: node.Interleave,
		FanOut:        1,
	}
}

// AddSource registers impl as a source node and returns a typed handle to
// it.
func AddSource[Out any](b *Builder, impl node.Source[Out], opts ...NodeOption) SourceHandle[Out] {
	h := defaultNodeInfo(node.KindSource)
	h.OutputType = elemType[Out]()
	for _, o := range opts {
		o(h)
	}
	b.assignID(h, "source")
	h.InitSource = func(ctx *runctx.Context) (pipe.ErasedPipe, error) {
		p, err := impl.Initialize(ctx)
		if err != nil {
			return nil, err
		}
		return pipe.Erase[Out](p), nil
	}
	b.register(h)
	return SourceHandle[Out]{id: h.ID}
}

// AddTransform registers impl as a transform node and returns a typed
// handle to it.
func AddTransform[In, Out any](b *Builder, impl node.Transform[In, Out], opts ...NodeOption) TransformHandle[In, Out] {
	h := defaultNodeInfo(node.KindTransform)
	h.InputType = elemType[In]()
	h.OutputType = elemType[Out]()
	for _, o := range opts {
		o(h)
	}
	b.assignID(h, "transform")
	nodeID := h.ID
	exec := impl.Execute
	if h.HasRetryDelay {
		delay, _, err := retrydelay.New(h.RetryDelay)
		if err == nil {
			exec = node.Resilient(nodeID, impl, delay, h.MaxAttempts).Execute
		}
	}
	h.ExecTransform = func(ctx *runctx.Context, item any) (any, bool, error) {
		typed, ok := item.(In)
		if !ok {
			return nil, false, configErrorf("node %s: transform received item of unexpected type %T", nodeID, item)
		}
		out, present, err := exec(ctx, typed)
		if err != nil || !present {
			return nil, present, err
		}
		return out, true, nil
	}
	b.register(h)
	return TransformHandle[In, Out]{id: h.ID}
}

// AddAggregate registers impl as an aggregate node and returns a typed
// handle to it.
func AddAggregate[In any, K comparable, Acc, Out any](b *Builder, impl node.Aggregate[In, K, Acc, Out], opts ...NodeOption) AggregateHandle[In, K, Acc, Out] {
	h := defaultNodeInfo(node.KindAggregate)
	h.InputType = elemType[In]()
	h.OutputType = elemType[Out]()
	for _, o := range opts {
		o(h)
	}
	b.assignID(h, "aggregate")
	nodeID := h.ID
	h.Aggregate = &ErasedAggregate{
		Window: impl.Window(),
		KeyOf: func(item any) any {
			typed, ok := item.(In)
			if !ok {
				panic(fmt.Sprintf("node %s: aggregate received item of unexpected type %T", nodeID, item))
			}
			return impl.KeyOf(typed)
		},
		Seed: func() any { return impl.Seed() },
		Fold: func(acc, item any) any {
			return impl.Fold(acc.(Acc), item.(In))
		},
		Merge: func(a, b any) any {
			return impl.Merge(a.(Acc), b.(Acc))
		},
		Finalize: func(key, acc any) []any {
			outs := impl.Finalize(key.(K), acc.(Acc))
			erased := make([]any, len(outs))
			for i, o := range outs {
				erased[i] = o
			}
			return erased
		},
	}
	b.register(h)
	return AggregateHandle[In, K, Acc, Out]{id: h.ID}
}

// AddSink registers impl as a sink node and returns a typed handle to it.
func AddSink[In any](b *Builder, impl node.Sink[In], opts ...NodeOption) SinkHandle[In] {
	h := defaultNodeInfo(node.KindSink)
	h.InputType = elemType[In]()
	for _, o := range opts {
		o(h)
	}
	b.assignID(h, "sink")
	h.ExecSink = func(ctx *runctx.Context, in pipe.ErasedPipe) error {
		return impl.Execute(ctx, pipe.Unerase[In](in))
	}
	b.register(h)
	return SinkHandle[In]{id: h.ID}
}

// Connect wires up's output to down's input. T unifies both handles' element
// type at compile time; the only way this call can fail at runtime is a
// handle whose node id is not registered in this Builder, such as a
// zero-value handle or one produced by a different Builder.
func Connect[T any](b *Builder, up OutputHandle[T], down InputHandle[T], opts ...EdgeOption) error {
	fromID, toID := up.outputID(), down.inputID()
	if _, ok := b.nodes[fromID]; !ok {
		return configErrorf("connect: unknown upstream node %q", fromID)
	}
	if _, ok := b.nodes[toID]; !ok {
		return configErrorf("connect: unknown downstream node %q", toID)
	}
	e := Edge{From: fromID, To: toID, ElemType: elemType[T]()}
	for _, o := range opts {
		o(&e)
	}
	b.edges = append(b.edges, e)
	return nil
}

// Warnings returns advisory messages accumulated by the last Finalize
// call, e.g. PreserveOrdering combined with high parallelism.
func (b *Builder) Warnings() []string {
	out := make([]string, len(b.warn))
	copy(out, b.warn)
	return out
}
