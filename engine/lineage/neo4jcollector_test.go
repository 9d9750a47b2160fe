package lineage

import (
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

func TestEventToMapIncludesDetailFields(t *testing.T) {
	ev := Event{
		RunID:     "run1",
		ItemID:    "item1",
		NodeID:    "node1",
		Kind:      "produced",
		Timestamp: time.Unix(0, 1700000000000000000),
		Detail:    map[string]any{"reason": "ok"},
	}
	m := eventToMap(ev)
	if m["runId"] != "run1" || m["nodeId"] != "node1" || m["kind"] != "produced" {
		t.Fatalf("unexpected map: %+v", m)
	}
	if m["detail_reason"] != "ok" {
		t.Fatalf("expected detail field to be flattened, got %+v", m)
	}
	if _, ok := m["id"].(string); !ok {
		t.Fatalf("expected generated id string, got %+v", m["id"])
	}
}

func TestEventFromRecordRoundTrips(t *testing.T) {
	ts := time.Unix(0, 1700000000000000000).UTC()
	node := dbtype.Node{
		Props: map[string]any{
			"runId":     "run1",
			"itemId":    "item1",
			"nodeId":    "node1",
			"kind":      "consumed",
			"timestamp": ts.UnixNano(),
		},
	}
	rec := &neo4j.Record{Keys: []string{"n"}, Values: []any{node}}

	ev, err := eventFromRecord(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.RunID != "run1" || ev.ItemID != "item1" || ev.NodeID != "node1" || ev.Kind != "consumed" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.Timestamp.Equal(ts) {
		t.Fatalf("expected timestamp %v, got %v", ts, ev.Timestamp)
	}
}

func TestNewNeo4jCollectorImplementsCollector(t *testing.T) {
	var _ Collector = NewNeo4jCollector(nil)
}
