package investigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetMeta(t *testing.T) {
	s := NewStore(t.TempDir())

	id, err := s.Create("", "panama-leak")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m, err := s.GetMeta(id)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "panama-leak", m.Name)
	assert.Equal(t, "active", m.Status)
	assert.Equal(t, 1, m.Version)
}

func TestGetMetaMissingReturnsNil(t *testing.T) {
	s := NewStore(t.TempDir())
	m, err := s.GetMeta("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestUpdateMetaMutatesStatus(t *testing.T) {
	s := NewStore(t.TempDir())
	id, err := s.Create("inv-1", "case")
	require.NoError(t, err)

	require.NoError(t, s.UpdateMeta(id, func(m *Meta) {
		m.Status = "awaiting_review"
	}))

	m, err := s.GetMeta(id)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_review", m.Status)
}

func TestUpdateMetaUnknownInvestigationErrors(t *testing.T) {
	s := NewStore(t.TempDir())
	err := s.UpdateMeta("ghost", func(m *Meta) {})
	assert.Error(t, err)
}

func TestAppendBatchCapsAtOneHundred(t *testing.T) {
	s := NewStore(t.TempDir())
	id, err := s.Create("inv-2", "case")
	require.NoError(t, err)

	for i := 0; i < 110; i++ {
		require.NoError(t, s.AppendBatch(id, BatchEntry{BatchID: "batch", DocCount: 1}))
	}

	m, err := s.GetMeta(id)
	require.NoError(t, err)
	assert.Len(t, m.Batches, 100)
}

func TestSaveAndLoadState(t *testing.T) {
	s := NewStore(t.TempDir())
	id, err := s.Create("inv-3", "case")
	require.NoError(t, err)

	type payload struct {
		CurrentStep string `json:"current_step"`
		Count       int    `json:"count"`
	}
	require.NoError(t, s.SaveState(id, 2, payload{CurrentStep: "entity_extraction_complete", Count: 5}))

	var out payload
	found, err := s.LoadState(id, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "entity_extraction_complete", out.CurrentStep)
	assert.Equal(t, 5, out.Count)

	m, err := s.GetMeta(id)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Version)
}

func TestLoadStateMissingReturnsFalse(t *testing.T) {
	s := NewStore(t.TempDir())
	var out map[string]any
	found, err := s.LoadState("nope", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListAllSortedByUpdatedAtDescending(t *testing.T) {
	s := NewStore(t.TempDir())
	idOld, err := s.Create("old", "old case")
	require.NoError(t, err)
	idNew, err := s.Create("new", "new case")
	require.NoError(t, err)

	require.NoError(t, s.UpdateMeta(idNew, func(m *Meta) { m.Status = "touched" }))

	all, err := s.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, idNew, all[0].ID)
	assert.Equal(t, idOld, all[1].ID)
}
