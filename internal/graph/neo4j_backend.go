package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// entityUniqueKey is the MERGE key for Entity nodes (spec §4.9: "MERGE
// semantics on entity identifier").
const entityUniqueKey = "entity_id"

// Neo4jBackend implements Backend against a live Neo4j instance using
// UNWIND batch writes and the parameterized CypherBuilder for the
// single-item paths.
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jBackend opens a Neo4j backend and verifies connectivity.
func NewNeo4jBackend(ctx context.Context, uri, username, password, database string) (*Neo4jBackend, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	return &Neo4jBackend{driver: driver, database: database}, nil
}

// CreateNodes upserts nodes in batch, grouped by label, using an
// UNWIND + MERGE pattern so a thousand-entity investigation issues one
// round trip per label instead of one per node.
func (n *Neo4jBackend) CreateNodes(ctx context.Context, nodes []GraphNode) error {
	if len(nodes) == 0 {
		return nil
	}
	if len(nodes) == 1 {
		return n.createSingleNode(ctx, nodes[0])
	}
	byLabel := map[string][]map[string]any{}
	for _, node := range nodes {
		if !isValidIdentifier(node.Label) {
			return fmt.Errorf("invalid node label: %s", node.Label)
		}
		byLabel[node.Label] = append(byLabel[node.Label], node.Properties)
	}

	for label, rows := range byLabel {
		cypher := fmt.Sprintf(
			"UNWIND $rows AS row MERGE (n:%s {%s: row.%s}) SET n += row",
			label, entityUniqueKey, entityUniqueKey,
		)
		_, err := neo4j.ExecuteQuery(ctx, n.driver, cypher,
			map[string]any{"rows": rows},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(n.database))
		if err != nil {
			return fmt.Errorf("failed to upsert %s nodes: %w", label, err)
		}
	}
	return nil
}

// createSingleNode upserts one node via the parameterized CypherBuilder
// path, avoiding UNWIND overhead for incremental single-entity writes.
func (n *Neo4jBackend) createSingleNode(ctx context.Context, node GraphNode) error {
	builder := NewCypherBuilder()
	uniqueValue := node.Properties[entityUniqueKey]
	cypher, err := builder.BuildMergeNode(node.Label, entityUniqueKey, uniqueValue, node.Properties)
	if err != nil {
		return fmt.Errorf("failed to build node query: %w", err)
	}
	_, err = neo4j.ExecuteQuery(ctx, n.driver, cypher,
		builder.Params(),
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return fmt.Errorf("failed to upsert node: %w", err)
	}
	return nil
}

// CreateEdges upserts typed edges in batch, grouped by label, matching
// endpoints by entityUniqueKey.
func (n *Neo4jBackend) CreateEdges(ctx context.Context, edges []GraphEdge) error {
	if len(edges) == 0 {
		return nil
	}
	if len(edges) == 1 {
		return n.createSingleEdge(ctx, edges[0])
	}
	byLabel := map[string][]map[string]any{}
	for _, edge := range edges {
		if !isValidIdentifier(edge.Label) {
			return fmt.Errorf("invalid edge label: %s", edge.Label)
		}
		byLabel[edge.Label] = append(byLabel[edge.Label], map[string]any{
			"from":  edge.FromID,
			"to":    edge.ToID,
			"props": edge.Properties,
		})
	}

	for label, rows := range byLabel {
		cypher := fmt.Sprintf(
			`UNWIND $rows AS row
MATCH (a:Entity {%s: row.from})
MATCH (b:Entity {%s: row.to})
MERGE (a)-[r:%s]->(b)
SET r += row.props`,
			entityUniqueKey, entityUniqueKey, label,
		)
		_, err := neo4j.ExecuteQuery(ctx, n.driver, cypher,
			map[string]any{"rows": rows},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(n.database))
		if err != nil {
			return fmt.Errorf("failed to upsert %s edges: %w", label, err)
		}
	}
	return nil
}

// createSingleEdge upserts one edge via the parameterized CypherBuilder
// path.
func (n *Neo4jBackend) createSingleEdge(ctx context.Context, edge GraphEdge) error {
	builder := NewCypherBuilder()
	cypher, err := builder.BuildMergeEdge(
		"Entity", entityUniqueKey, edge.FromID,
		"Entity", entityUniqueKey, edge.ToID,
		edge.Label, edge.Properties,
	)
	if err != nil {
		return fmt.Errorf("failed to build edge query: %w", err)
	}
	result, err := neo4j.ExecuteQuery(ctx, n.driver, cypher,
		builder.Params(),
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return fmt.Errorf("failed to upsert edge %s: %w", edge.Label, err)
	}
	if len(result.Records) == 0 {
		return fmt.Errorf("edge upsert returned no results (endpoints may not exist): %s", edge.Label)
	}
	return nil
}

// Stats reads back total node count, edge count, and a label histogram.
func (n *Neo4jBackend) Stats(ctx context.Context) (int, int, map[string]int, error) {
	nodeResult, err := neo4j.ExecuteQuery(ctx, n.driver,
		"MATCH (n) RETURN count(n) AS count",
		nil, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return 0, 0, nil, fmt.Errorf("node count query failed: %w", err)
	}
	nodeCount := recordInt(nodeResult, "count")

	edgeResult, err := neo4j.ExecuteQuery(ctx, n.driver,
		"MATCH ()-[r]->() RETURN count(r) AS count",
		nil, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return 0, 0, nil, fmt.Errorf("edge count query failed: %w", err)
	}
	edgeCount := recordInt(edgeResult, "count")

	histResult, err := neo4j.ExecuteQuery(ctx, n.driver,
		"MATCH (n) RETURN n.type AS label, count(n) AS count",
		nil, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return 0, 0, nil, fmt.Errorf("label histogram query failed: %w", err)
	}
	histogram := map[string]int{}
	for _, rec := range histResult.Records {
		label, _ := rec.Get("label")
		count, _ := rec.Get("count")
		if labelStr, ok := label.(string); ok {
			histogram[labelStr] = toInt(count)
		}
	}

	return nodeCount, edgeCount, histogram, nil
}

func recordInt(result *neo4j.EagerResult, key string) int {
	if len(result.Records) == 0 {
		return 0
	}
	v, ok := result.Records[0].Get(key)
	if !ok {
		return 0
	}
	return toInt(v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// Close closes the Neo4j driver connection.
func (n *Neo4jBackend) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}
