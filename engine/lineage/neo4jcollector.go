package lineage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/npipeline/npipeline/pkg/repo"
)

// Neo4jCollector records lineage events as LineageEvent nodes, keyed by a
// generated event id, so a run's full provenance graph can be queried
// after the fact. It is a thin domain wrapper around repo.Neo4jRepo: the
// session handling, Cypher construction and result decoding all live in
// pkg/repo, the same adapter the rest of the codebase uses for Neo4j-backed
// CRUD.
type Neo4jCollector struct {
	events *repo.Neo4jRepo[Event, string]
}

// NewNeo4jCollector creates a collector backed by driver.
func NewNeo4jCollector(driver neo4j.DriverWithContext) *Neo4jCollector {
	return &Neo4jCollector{
		events: repo.NewNeo4jRepo[Event, string](driver, "LineageEvent", eventToMap, eventFromRecord),
	}
}

func eventToMap(ev Event) map[string]any {
	props := map[string]any{
		"id":        uuid.NewString(),
		"runId":     ev.RunID,
		"itemId":    ev.ItemID,
		"nodeId":    ev.NodeID,
		"kind":      ev.Kind,
		"timestamp": ev.Timestamp.UnixNano(),
	}
	for k, v := range ev.Detail {
		props["detail_"+k] = v
	}
	return props
}

func eventFromRecord(rec *neo4j.Record) (Event, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Event{}, err
	}
	props := node.Props
	ev := Event{
		RunID:  stringProp(props, "runId"),
		ItemID: stringProp(props, "itemId"),
		NodeID: stringProp(props, "nodeId"),
		Kind:   stringProp(props, "kind"),
	}
	if ns, ok := props["timestamp"].(int64); ok {
		ev.Timestamp = time.Unix(0, ns).UTC()
	}
	return ev, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Record implements Collector by creating a LineageEvent node for ev.
func (c *Neo4jCollector) Record(ctx context.Context, ev Event) error {
	_, err := c.events.Create(ctx, ev)
	return err
}

var _ Collector = (*Neo4jCollector)(nil)
