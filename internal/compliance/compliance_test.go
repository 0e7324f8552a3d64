package compliance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func TestStageValidWhenEvidenceWellBacked(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Entities["e1"] = &state.Entity{EntityID: "e1", Confidence: 0.99}
	s.Relationships = []*state.Relationship{
		{SourceEntityID: "e1", TargetEntityID: "e2", Evidence: map[string]struct{}{"doc1": {}}},
	}
	s.Hypotheses = []*state.Hypothesis{
		{HypothesisID: "H1", Confidence: 0.9, EntitiesInvolved: []string{"e1"}},
	}

	require.NoError(t, Stage(context.Background(), s))

	require.NotNil(t, s.ComplianceReport)
	assert.Equal(t, state.ComplianceValid, s.ComplianceReport.OverallStatus)
	assert.Empty(t, s.ComplianceReport.Violations)
}

func TestStageBlockedOnCriticalPII(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.CryptographyFindings = []*state.CryptographyFinding{
		{DocumentID: "doc1", FindingType: "pii_critical"},
	}

	require.NoError(t, Stage(context.Background(), s))

	assert.Equal(t, state.ComplianceBlocked, s.ComplianceReport.OverallStatus)
	require.Len(t, s.ComplianceReport.Violations, 1)
	assert.Equal(t, "pii_exposure", s.ComplianceReport.Violations[0].Type)
}

func TestStageNeedsReviewOnUnbackedEntity(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Entities["e1"] = &state.Entity{EntityID: "e1", Confidence: 1.0}
	s.Hypotheses = []*state.Hypothesis{
		{HypothesisID: "H1", Confidence: 0.9, EntitiesInvolved: []string{"e1"}},
	}

	require.NoError(t, Stage(context.Background(), s))

	assert.Equal(t, state.ComplianceNeedsReview, s.ComplianceReport.OverallStatus)
	require.Len(t, s.ComplianceReport.Violations, 1)
	assert.Equal(t, "unbacked_entity", s.ComplianceReport.Violations[0].Type)
}

func TestStageBlockedOnHighContradictionRatio(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.SemanticLinks = []*state.SemanticLink{{DocIDA: "a", DocIDB: "b"}}
	s.Contradictions = []*state.Contradiction{
		{DocIDA: "a", DocIDB: "b", Type: "numeric_mismatch"},
	}

	require.NoError(t, Stage(context.Background(), s))

	assert.Equal(t, state.ComplianceBlocked, s.ComplianceReport.OverallStatus)
	assert.Equal(t, 1.0, s.ComplianceReport.DeltaE)
}

func TestComputeFidelityDefaultsWhenNoHypotheses(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	assert.Equal(t, 0.99, computeFidelity(s))
}

func TestComputeDeltaEFlagsBiasAlert(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Hypotheses = []*state.Hypothesis{
		{HypothesisID: "H1", Confidence: 0.9, EntitiesInvolved: []string{"e1"}, DocIDsSupporting: []string{"doc1"}},
		{HypothesisID: "H2", Confidence: 0.3, EntitiesInvolved: []string{"e1"}, DocIDsSupporting: []string{"doc1"}},
		{HypothesisID: "H3", Confidence: 0.5, EntitiesInvolved: []string{"e1"}, DocIDsSupporting: []string{"doc1"}},
	}

	_, biasAlerts := computeDeltaE(s)

	require.Len(t, biasAlerts, 1)
	assert.Contains(t, biasAlerts[0], "e1")
}
