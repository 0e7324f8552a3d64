package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/ledger"
	"github.com/sherlock-intel/engine/internal/state"
)

func newTestEnv(t *testing.T) (*state.InvestigationState, *ledger.Ledger, string) {
	uploads := t.TempDir()
	quarantine := t.TempDir()

	ldg, err := ledger.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ldg.Close() })

	cfg := state.DefaultConfig()
	s := state.NewInvestigationState("inv-ingest", uploads, cfg)
	return s, ldg, quarantine
}

func TestStageIngestsSupportedFilesAndSkipsUnsupported(t *testing.T) {
	s, ldg, quarantine := newTestEnv(t)

	require.NoError(t, os.WriteFile(filepath.Join(s.UploadsPath, "a.txt"), []byte("This is the report filed for the case."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.UploadsPath, "skip.unknownext"), []byte("ignored"), 0o644))

	require.NoError(t, Stage(context.Background(), s, ldg, quarantine))

	assert.Equal(t, "ingestion_complete", s.CurrentStep)
	assert.Len(t, s.Documents, 1)
	for _, doc := range s.Documents {
		assert.Equal(t, state.StatusSuccess, doc.Status)
		assert.Equal(t, "a.txt", doc.Filename)
	}
}

func TestStageAttachesDescriptions(t *testing.T) {
	s, ldg, quarantine := newTestEnv(t)

	require.NoError(t, os.WriteFile(filepath.Join(s.UploadsPath, "note.txt"), []byte("Confidential internal memo about the deal."), 0o644))
	descriptions := map[string]string{"note.txt": "internal memo"}
	data, err := json.Marshal(descriptions)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.UploadsPath, "descriptions.json"), data, 0o644))

	require.NoError(t, Stage(context.Background(), s, ldg, quarantine))

	require.Len(t, s.Documents, 1)
	for _, doc := range s.Documents {
		assert.Equal(t, "internal memo", doc.Metadata["description"])
	}
}

func TestStageSkipsAlreadyDoneInLedger(t *testing.T) {
	s, ldg, quarantine := newTestEnv(t)

	path := filepath.Join(s.UploadsPath, "seen.txt")
	require.NoError(t, os.WriteFile(path, []byte("Content that was already processed before."), 0o644))

	hash, err := hashFile(path)
	require.NoError(t, err)
	require.NoError(t, ldg.MarkSuccess(hash, s.InvestigationID, "ingestion"))

	require.NoError(t, Stage(context.Background(), s, ldg, quarantine))
	assert.Empty(t, s.Documents)
}

func TestStageQuarantinesEmptyExtraction(t *testing.T) {
	s, ldg, quarantine := newTestEnv(t)

	require.NoError(t, os.WriteFile(filepath.Join(s.UploadsPath, "blank.txt"), []byte{}, 0o644))

	require.NoError(t, Stage(context.Background(), s, ldg, quarantine))

	require.Len(t, s.Documents, 1)
	for _, doc := range s.Documents {
		assert.Equal(t, state.StatusFailed, doc.Status)
	}
}
