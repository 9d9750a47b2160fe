package runner

import (
	"github.com/npipeline/npipeline/pkg/metrics"
)

// runMetrics mirrors the per-command metrics block cmd/ingest/main.go
// registers on a *metrics.Registry, generalized from "stage" to "node".
type runMetrics struct {
	reg *metrics.Registry

	itemsProcessed   func(nodeID string) *metrics.Counter
	errorsByPolicy   func(nodeID, policy string) *metrics.Counter
	retryExhaustions func(nodeID string) *metrics.Counter
	activeGoroutines func(nodeID string) *metrics.Gauge
	nodeDuration     func(nodeID string) *metrics.Histogram
}

// newRunMetrics builds a runMetrics view over reg. If reg is nil, a
// private registry is created so callers never need a nil check.
func newRunMetrics(reg *metrics.Registry) *runMetrics {
	if reg == nil {
		reg = metrics.New()
	}
	return &runMetrics{
		reg: reg,
		itemsProcessed: func(nodeID string) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("npipeline_items_processed_total", "node", nodeID), "Total items processed by a node")
		},
		errorsByPolicy: func(nodeID, policy string) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("npipeline_errors_total", "node", nodeID, "policy", policy), "Total node errors by error policy")
		},
		retryExhaustions: func(nodeID string) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("npipeline_retry_exhaustions_total", "node", nodeID), "Total resilient-wrapper retry exhaustions")
		},
		activeGoroutines: func(nodeID string) *metrics.Gauge {
			return reg.Gauge(metrics.WithLabels("npipeline_node_active_goroutines", "node", nodeID), "Node goroutines currently in flight")
		},
		nodeDuration: func(nodeID string) *metrics.Histogram {
			return reg.Histogram(metrics.WithLabels("npipeline_node_duration_seconds", "node", nodeID), "Per-node execution duration", nil)
		},
	}
}
