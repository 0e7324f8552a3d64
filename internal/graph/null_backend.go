package graph

import (
	"context"

	"github.com/sherlock-intel/engine/internal/logging"
)

// NullBackend is the capability-gated stand-in used when no graph
// store is configured or the configured store is unreachable (spec
// §4.9: failures fall back to empty maps and a warning, never a
// blocked pipeline). It accepts writes silently and reports zero
// stats.
type NullBackend struct{}

func (NullBackend) CreateNodes(ctx context.Context, nodes []GraphNode) error { return nil }

func (NullBackend) CreateEdges(ctx context.Context, edges []GraphEdge) error { return nil }

func (NullBackend) Stats(ctx context.Context) (int, int, map[string]int, error) {
	return 0, 0, map[string]int{}, nil
}

func (NullBackend) Close(ctx context.Context) error { return nil }

// NewBackend probes for a configured, reachable Neo4j instance and
// falls back to NullBackend otherwise, logging the reason.
func NewBackend(ctx context.Context, uri, username, password, database string) Backend {
	if uri == "" {
		logging.Info("no graph store configured, using in-memory graph metadata only")
		return NullBackend{}
	}
	backend, err := NewNeo4jBackend(ctx, uri, username, password, database)
	if err != nil {
		logging.Warn("graph store unreachable, falling back to null backend", "error", err)
		return NullBackend{}
	}
	return backend
}
