package dag

import (
	"reflect"

	"github.com/npipeline/npipeline/engine/node"
	"github.com/npipeline/npipeline/engine/runctx"
	"github.com/npipeline/npipeline/pkg/pipe"
	"github.com/npipeline/npipeline/pkg/retrydelay"
)

// ErasedAggregate is the type-erased form of node.Aggregate[In, K, Acc, Out]
// the runner drives: keys, accumulators, and outputs all cross this
// boundary as `any`, boxed and unboxed by the closures AddAggregate built
// around the original generic implementation.
type ErasedAggregate struct {
	Window   node.Window
	KeyOf    func(item any) any
	Seed     func() any
	Fold     func(acc, item any) any
	Merge    func(a, b any) any
	Finalize func(key, acc any) []any
}

// NodeInfo is a finalized node's runtime-facing description: its
// declarative attributes plus type-erased closures into the original
// generic node implementation. The runner drives a graph entirely through
// NodeInfo and Edge, never needing the node's original type parameters.
type NodeInfo struct {
	ID            string
	Kind          node.Kind
	InputType     reflect.Type
	OutputType    reflect.Type
	ErrorPolicy   node.ErrorPolicy
	ExecStrategy  node.ExecutionStrategy
	MergeStrategy node.MergeStrategy
	RetryDelay    retrydelay.Config
	HasRetryDelay bool
	MaxAttempts   int
	DeadLetterID  string
	FanOut        int

	InitSource    func(ctx *runctx.Context) (pipe.ErasedPipe, error)
	ExecTransform func(ctx *runctx.Context, item any) (any, bool, error)
	ExecSink      func(ctx *runctx.Context, in pipe.ErasedPipe) error
	Aggregate     *ErasedAggregate
}

// Edge is a directed, typed connection between two finalized nodes.
type Edge struct {
	From       string
	To         string
	ElemType   reflect.Type
	BufferSize int
	Role       string
}

// Graph is the immutable, validated result of Builder.Finalize. The
// runner is the only intended consumer.
type Graph struct {
	order []string
	nodes map[string]*NodeInfo
	edges []Edge
}

// Order returns node ids in topological order (sources first, sinks
// last).
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Node returns the NodeInfo for id, or nil if id is not in the graph.
func (g *Graph) Node(id string) *NodeInfo { return g.nodes[id] }

// Nodes returns every node in the graph, in topological order.
func (g *Graph) Nodes() []*NodeInfo {
	out := make([]*NodeInfo, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// InboundEdges returns edges whose To is id, in declared order.
func (g *Graph) InboundEdges(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// OutboundEdges returns edges whose From is id, in declared order.
func (g *Graph) OutboundEdges(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}
