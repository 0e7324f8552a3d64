package graph

import "context"

// Backend defines the interface for graph database operations. The
// investigation graph construction stage (spec §4.9) depends only on
// this interface, so it can run against Neo4j or a capability-gated
// no-op stand-in when no graph store is configured.
type Backend interface {
	// CreateNodes upserts nodes via MERGE, idempotent on their unique key.
	CreateNodes(ctx context.Context, nodes []GraphNode) error

	// CreateEdges upserts typed edges via MERGE between existing nodes.
	CreateEdges(ctx context.Context, edges []GraphEdge) error

	// Stats reads back node count, edge count, and a label histogram.
	Stats(ctx context.Context) (nodeCount, edgeCount int, labelHistogram map[string]int, err error)

	// Close closes the backend connection.
	Close(ctx context.Context) error
}

// GraphNode represents a node in the graph.
type GraphNode struct {
	Label      string         // Node type, e.g. "Entity"
	Properties map[string]any // Node properties, must include the unique key
}

// GraphEdge represents an edge in the graph.
type GraphEdge struct {
	Label      string // Edge type, e.g. "RELATED_TO"
	FromID     string // Unique key value of the source node
	ToID       string // Unique key value of the target node
	Properties map[string]any
}
