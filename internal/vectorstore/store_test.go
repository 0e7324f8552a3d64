package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreQueryExcludesOwnDocumentAndRanksBySimilarity(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Upsert(context.Background(), []Chunk{
		{ID: "a1", DocID: "docA", Vector: []float32{1, 0, 0}},
		{ID: "b1", DocID: "docB", Vector: []float32{1, 0, 0}},
		{ID: "b2", DocID: "docB", Vector: []float32{0, 1, 0}},
	}))

	matches, err := m.Query(context.Background(), "docA", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "b1", matches[0].Chunk.ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-9)
	assert.Greater(t, matches[1].Distance, matches[0].Distance)
}

func TestMemoryStoreUpsertReplacesExistingID(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Upsert(context.Background(), []Chunk{{ID: "a1", DocID: "docA", Text: "first"}}))
	require.NoError(t, m.Upsert(context.Background(), []Chunk{{ID: "a1", DocID: "docA", Text: "second"}}))

	assert.Len(t, m.chunks, 1)
	assert.Equal(t, "second", m.chunks[0].Text)
}

func TestCosineDistanceZeroVectorIsMaximal(t *testing.T) {
	assert.Equal(t, 1.0, cosineDistance([]float32{0, 0}, []float32{1, 1}))
}

func TestNewStoreFallsBackToMemoryWhenNoHost(t *testing.T) {
	s := NewStore("", 0, "")
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}
