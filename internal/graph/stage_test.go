package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func TestStageComputesCentralityAndStats(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Entities["e1"] = &state.Entity{EntityID: "e1", Text: "Hub Corp", Type: state.EntityOrg, Documents: map[string]struct{}{}}
	s.Entities["e2"] = &state.Entity{EntityID: "e2", Text: "Leaf One", Type: state.EntityOrg, Documents: map[string]struct{}{}}
	s.Entities["e3"] = &state.Entity{EntityID: "e3", Text: "Leaf Two", Type: state.EntityOrg, Documents: map[string]struct{}{}}
	s.Relationships = []*state.Relationship{
		{SourceEntityID: "e1", TargetEntityID: "e2", Weight: 1, RelationshipType: state.RelAssociatedWith},
		{SourceEntityID: "e1", TargetEntityID: "e3", Weight: 1, RelationshipType: state.RelAssociatedWith},
	}

	require.NoError(t, Stage(context.Background(), s, NullBackend{}))

	assert.Equal(t, 3, s.GraphMetadata.NodeCount)
	assert.NotEmpty(t, s.CentralityScores)
	assert.Greater(t, s.CentralityScores["e1"], s.CentralityScores["e2"])
	require.NotEmpty(t, s.GraphMetadata.TopEntities)
	assert.Equal(t, "e1", s.GraphMetadata.TopEntities[0].EntityID)
}

func TestStageFallsBackOnStatsFailure(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Entities["e1"] = &state.Entity{EntityID: "e1", Text: "Solo", Type: state.EntityOrg, Documents: map[string]struct{}{}}

	require.NoError(t, Stage(context.Background(), s, failingBackend{}))

	assert.Equal(t, 1, s.GraphMetadata.NodeCount)
	assert.Equal(t, 0, s.GraphMetadata.EdgeCount)
}

type failingBackend struct{}

func (failingBackend) CreateNodes(ctx context.Context, nodes []GraphNode) error { return assertErr }
func (failingBackend) CreateEdges(ctx context.Context, edges []GraphEdge) error { return assertErr }
func (failingBackend) Stats(ctx context.Context) (int, int, map[string]int, error) {
	return 0, 0, nil, assertErr
}
func (failingBackend) Close(ctx context.Context) error { return nil }

var assertErr = assertError("simulated backend failure")

type assertError string

func (e assertError) Error() string { return string(e) }
