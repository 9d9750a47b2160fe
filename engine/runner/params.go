package runner

import "strings"

// Well-known runtime context parameter keys, read and written through
// Context.Params.
const (
	// ParamLastRetryExhaustedException is stashed by the counting pipe
	// (pkg/pipe.Counting) the moment it observes a node's resilient
	// wrapper exhaust its retries, before re-raising the error. When the
	// node's Skip or DeadLetter policy absorbs that error instead,
	// applyPolicy stashes it.
	ParamLastRetryExhaustedException = "lastRetryExhaustedException"

	// ParamLineageCollector optionally names the run's lineage.Collector
	// in Params, for nodes that want to record lineage events. The runner
	// itself records none.
	ParamLineageCollector = "lineageCollector"

	batchAnalyticsPrefix = "batchAnalytics."
)

// BatchAnalyticsKey returns the Params key collaborating nodes share
// opaque scratch space under for the given id.
func BatchAnalyticsKey(id string) string {
	var b strings.Builder
	b.WriteString(batchAnalyticsPrefix)
	b.WriteString(id)
	return b.String()
}
