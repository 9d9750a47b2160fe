package dag

import (
	"fmt"

	"github.com/npipeline/npipeline/engine/node"
)

// preserveOrderingParallelismThreshold is the heuristic above which
// PreserveOrdering's reorder buffer is flagged as likely to dominate a
// node's memory footprint. Spec explicitly declines to prescribe a hard
// rule; this is advisory only and never rejects a graph.
const preserveOrderingParallelismThreshold = 4

// analyzeWarnings inspects finalized node attributes for combinations that
// are legal but likely to surprise, returning advisory messages.
func analyzeWarnings(nodes map[string]*NodeInfo) []string {
	var warnings []string
	for _, n := range nodes {
		if n.ExecStrategy.Kind != node.ExecBoundedParallel {
			continue
		}
		if n.ExecStrategy.PreserveOrdering && n.ExecStrategy.K > preserveOrderingParallelismThreshold {
			warnings = append(warnings, fmt.Sprintf(
				"node %q: PreserveOrdering with parallelism %d may let the reorder buffer dominate memory use",
				n.ID, n.ExecStrategy.K))
		}
	}
	return warnings
}
