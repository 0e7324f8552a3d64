package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/entities"
	"github.com/sherlock-intel/engine/internal/graph"
	"github.com/sherlock-intel/engine/internal/investigation"
	"github.com/sherlock-intel/engine/internal/ledger"
	"github.com/sherlock-intel/engine/internal/state"
	"github.com/sherlock-intel/engine/internal/vectorstore"
)

// TestRunTwoDocumentInvestigationEndToEnd exercises spec §8 scenario 1:
// two plain-text documents sharing an entity should flow through all
// ten stages and end with a compliance report whose status is set.
func TestRunTwoDocumentInvestigationEndToEnd(t *testing.T) {
	uploadsDir := t.TempDir()
	sharedParagraph := "Alice Silva authorized a wire transfer of 50000 to Acme Offshore Holdings on 2024-01-15. " +
		"This confidential payment relates to the acquisition contract signed between Alice Silva, Bob Santos, " +
		"and Acme Offshore Holdings regarding the shareholder agreement and subsidiary merger."
	writeFile(t, uploadsDir, "memo_one.txt",
		"MEMO\nFrom: Alice Silva\nTo: Bob Santos\nSubject: Wire transfer agreement\n\n"+sharedParagraph)
	writeFile(t, uploadsDir, "memo_two.txt",
		"MEMO\nFrom: Bob Santos\nTo: Alice Silva\nSubject: Wire transfer agreement\n\n"+sharedParagraph)

	ldgPath := filepath.Join(t.TempDir(), "ledger.db")
	ldg, err := ledger.Open(ldgPath)
	require.NoError(t, err)
	defer ldg.Close()

	invStore := investigation.NewStore(t.TempDir())
	invID, err := invStore.Create("", "scenario-1")
	require.NoError(t, err)

	cfg := state.DefaultConfig()
	cfg.InterruptBeforeGate = false
	s := state.NewInvestigationState(invID, uploadsDir, cfg)

	orch := &Orchestrator{
		Ledger:             ldg,
		NER:                entities.RegexNER{},
		VectorStore:        vectorstore.NewMemoryStore(),
		GraphBackend:       graph.NullBackend{},
		InvestigationStore: invStore,
		ReportsDir:         "",
		QuarantineDir:      t.TempDir(),
	}

	err = orch.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "compliance_gate_complete", s.CurrentStep)
	assert.Len(t, s.Documents, 2)
	assert.NotEmpty(t, s.Entities)
	assert.NotEmpty(t, s.Relationships)
	assert.NotEmpty(t, s.SemanticLinks)
	require.NotNil(t, s.ComplianceReport)
	assert.NotEqual(t, state.ComplianceStatus(""), s.ComplianceReport.OverallStatus)
}

func TestRunInterruptsBeforeComplianceGateWhenConfigured(t *testing.T) {
	uploadsDir := t.TempDir()
	writeFile(t, uploadsDir, "note.txt", "Alice Silva met Bob Santos to discuss the contract.")

	ldgPath := filepath.Join(t.TempDir(), "ledger.db")
	ldg, err := ledger.Open(ldgPath)
	require.NoError(t, err)
	defer ldg.Close()

	invStore := investigation.NewStore(t.TempDir())
	invID, err := invStore.Create("", "interrupt-scenario")
	require.NoError(t, err)

	cfg := state.DefaultConfig()
	cfg.InterruptBeforeGate = true
	s := state.NewInvestigationState(invID, uploadsDir, cfg)

	orch := &Orchestrator{
		Ledger:             ldg,
		NER:                entities.RegexNER{},
		VectorStore:        vectorstore.NewMemoryStore(),
		GraphBackend:       graph.NullBackend{},
		InvestigationStore: invStore,
		QuarantineDir:      t.TempDir(),
	}

	err = orch.Run(context.Background(), s)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, "synthesis_complete", s.CurrentStep)
	assert.Nil(t, s.ComplianceReport)

	s.HumanFeedback = "approved"
	require.NoError(t, orch.Run(context.Background(), s))
	assert.Equal(t, "compliance_gate_complete", s.CurrentStep)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
