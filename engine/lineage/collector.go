// Package lineage records item-level provenance as items cross node
// boundaries during a run, for optional consumption by the runtime
// context's services bag.
package lineage

import (
	"context"
	"time"
)

// Event is one record of an item's movement through the graph.
type Event struct {
	RunID     string
	ItemID    string
	NodeID    string
	Kind      string // "produced", "consumed", "dropped", "retried"
	Timestamp time.Time
	Detail    map[string]any
}

// Collector receives lineage events. Implementations must be safe for
// concurrent use: every node in a run may record events concurrently.
type Collector interface {
	Record(ctx context.Context, ev Event) error
}
