package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func TestConsolidatePromotesImportantShortTermAndClearsIt(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	m.ShortTerm.Store("inv1", "pattern-x", StoredPattern{
		PatternType: "high_degree",
		Description: "entity X is highly connected",
		Confidence:  0.9,
	}, 0.9, "")
	m.ShortTerm.Store("inv1", "noise", "irrelevant", 0.1, "")

	s := state.NewInvestigationState("inv1", "/tmp", state.DefaultConfig())
	s.CurrentStep = "odos_guardian_complete"
	s.ComplianceReport = &state.ComplianceReport{OverallStatus: state.ComplianceValid}

	require.NoError(t, m.Consolidate("inv1", s))

	patterns, err := m.LongTerm.GetPatterns("", 0)
	require.NoError(t, err)
	assert.Len(t, patterns, 1)
	assert.Equal(t, "high_degree", patterns[0].PatternType)

	history, err := m.LongTerm.GetInvestigationHistory(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "inv1", history[0].InvestigationID)
	assert.Equal(t, "VALID", history[0].OdosStatus)

	remaining := m.ShortTerm.Retrieve("inv1", "", nil)
	assert.Empty(t, remaining, "short-term memory must be cleared after consolidation")
}

func TestQueryPatternsByConceptRanksByKeywordOverlap(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	require.NoError(t, m.LongTerm.StorePattern(StoredPattern{PatternType: "community", Description: "offshore shell network", Confidence: 0.8}))
	require.NoError(t, m.LongTerm.StorePattern(StoredPattern{PatternType: "community", Description: "unrelated local vendor cluster", Confidence: 0.7}))

	results, err := m.QueryPatternsByConcept("offshore shell", "", 0, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Description, "offshore")
}
