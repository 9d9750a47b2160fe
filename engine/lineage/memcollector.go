package lineage

import (
	"context"
	"sync"
)

// MemCollector buffers events in memory, for tests and small-scale runs.
type MemCollector struct {
	mu     sync.Mutex
	events []Event
}

// NewMemCollector returns an empty in-memory collector.
func NewMemCollector() *MemCollector {
	return &MemCollector{}
}

func (c *MemCollector) Record(ctx context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of every event recorded so far.
func (c *MemCollector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
