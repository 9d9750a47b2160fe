package dag

import (
	"sort"

	"github.com/npipeline/npipeline/engine/node"
)

// Finalize runs the five checks spec mandates, in order, and returns an
// immutable Graph. Errors accumulated during Add*/Connect calls (e.g.
// duplicate ids) are reported here, alongside Finalize's own checks.
func (b *Builder) Finalize() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	order, err := topologicalOrder(b.nodes, b.edges)
	if err != nil {
		return nil, err
	}
	if err := checkFanRules(b.nodes, b.edges); err != nil {
		return nil, err
	}
	if err := checkEdgeTypes(b.nodes, b.edges); err != nil {
		return nil, err
	}
	if err := checkWeaklyConnected(b.nodes, b.edges); err != nil {
		return nil, err
	}
	if err := checkDeadLetterTargets(b.nodes); err != nil {
		return nil, err
	}

	b.warn = analyzeWarnings(b.nodes)

	edges := make([]Edge, len(b.edges))
	copy(edges, b.edges)
	return &Graph{order: order, nodes: b.nodes, edges: edges}, nil
}

// topologicalOrder computes node order via Kahn's algorithm, the same
// shape as Streamy's engine.Graph.TopologicalSort, adapted to fail fast on
// the first unprocessable remainder rather than compute discrete levels.
func topologicalOrder(nodes map[string]*NodeInfo, edges []Edge) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	outbound := make(map[string][]string, len(nodes))
	for id := range nodes {
		indegree[id] = 0
	}
	for _, e := range edges {
		indegree[e.To]++
		outbound[e.From] = append(outbound[e.From], e.To)
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		var freed []string
		for _, next := range outbound[id] {
			indegree[next]--
			if indegree[next] == 0 {
				freed = append(freed, next)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
		sort.Strings(queue)
	}

	if len(order) != len(nodes) {
		return nil, configErrorf("cycle detected among nodes")
	}
	return order, nil
}

// checkFanRules asserts every non-source node has at least one inbound
// edge and every non-sink node has at least one outbound edge.
func checkFanRules(nodes map[string]*NodeInfo, edges []Edge) error {
	inbound := make(map[string]int, len(nodes))
	outbound := make(map[string]int, len(nodes))
	for _, e := range edges {
		inbound[e.To]++
		outbound[e.From]++
	}
	for id, n := range nodes {
		if n.Kind != node.KindSource && inbound[id] == 0 {
			return configErrorf("node %q (%s) has no inbound edge", id, n.Kind)
		}
		if n.Kind != node.KindSink && outbound[id] == 0 {
			return configErrorf("node %q (%s) has no outbound edge", id, n.Kind)
		}
	}
	return nil
}

// checkEdgeTypes re-verifies that each edge's recorded element type
// matches both endpoints' declared type. Go's compiler already enforces
// this for any edge built through Connect[T]; this check only catches an
// internal bug where a NodeInfo's declared type and its edges' recorded
// type have drifted.
func checkEdgeTypes(nodes map[string]*NodeInfo, edges []Edge) error {
	for _, e := range edges {
		from, ok := nodes[e.From]
		if !ok {
			return configErrorf("edge references unknown node %q", e.From)
		}
		to, ok := nodes[e.To]
		if !ok {
			return configErrorf("edge references unknown node %q", e.To)
		}
		if from.OutputType != nil && from.OutputType != e.ElemType {
			return configErrorf("edge %s->%s: upstream output type %s does not match edge type %s", e.From, e.To, from.OutputType, e.ElemType)
		}
		if to.InputType != nil && to.InputType != e.ElemType {
			return configErrorf("edge %s->%s: downstream input type %s does not match edge type %s", e.From, e.To, to.InputType, e.ElemType)
		}
	}
	return nil
}

// checkDeadLetterTargets asserts every node's declared dag.WithDeadLetter id,
// if any, names another node actually present in the graph. Routing itself
// happens at run time through runner.WithDeadLetterHandler, keyed by this
// same id — this check only catches a typo'd or stale id at build time
// instead of letting it silently fall back to PolicySkip on every reject.
func checkDeadLetterTargets(nodes map[string]*NodeInfo) error {
	for id, n := range nodes {
		if n.DeadLetterID == "" {
			continue
		}
		if _, ok := nodes[n.DeadLetterID]; !ok {
			return configErrorf("node %q declares dead-letter target %q, which does not exist", id, n.DeadLetterID)
		}
	}
	return nil
}

// checkWeaklyConnected asserts the graph is one weakly-connected component
// when every node has at least one edge (i.e. more than one node exists).
func checkWeaklyConnected(nodes map[string]*NodeInfo, edges []Edge) error {
	if len(nodes) <= 1 {
		return nil
	}
	adjacency := make(map[string][]string, len(nodes))
	for _, e := range edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
		adjacency[e.To] = append(adjacency[e.To], e.From)
	}

	var start string
	for id := range nodes {
		start = id
		break
	}

	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[id] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	for id := range nodes {
		if !visited[id] {
			return configErrorf("node %q is not connected to the rest of the graph", id)
		}
	}
	return nil
}
