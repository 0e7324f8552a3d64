package synthesis

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func TestStageDerivesHypothesesFromPatterns(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Patterns = []*state.Pattern{
		{PatternID: "p1", Description: "entity A is unusually central", Confidence: 0.8, EntitiesInvolved: []string{"A"}},
	}

	require.NoError(t, Stage(context.Background(), s, ""))

	require.Len(t, s.Hypotheses, 1)
	assert.Equal(t, "H1", s.Hypotheses[0].HypothesisID)
	assert.Equal(t, state.HypothesisUnderReview, s.Hypotheses[0].Status)
	assert.Equal(t, 0.8, s.Hypotheses[0].Confidence)
}

func TestStageFallsBackToCentralityWhenNoPatterns(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Entities["e1"] = &state.Entity{EntityID: "e1", Text: "Hub Corp"}
	s.CentralityScores = map[string]float64{"e1": 0.6}

	require.NoError(t, Stage(context.Background(), s, ""))

	require.Len(t, s.Hypotheses, 1)
	assert.Contains(t, s.Hypotheses[0].Title, "Hub Corp")
	assert.InDelta(t, 1.0, s.Hypotheses[0].Confidence, 0.001)
}

func TestGenerateLeadsAddsTimelineAndSemanticLeads(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Timeline = []*state.TimelineEvent{{EventID: "e1"}}
	s.SemanticLinks = []*state.SemanticLink{{DocIDA: "a", DocIDB: "b"}}

	require.NoError(t, Stage(context.Background(), s, ""))

	require.Len(t, s.Leads, 2)
	assert.Equal(t, state.LeadHigh, s.Leads[0].Priority)
	assert.Equal(t, state.LeadMedium, s.Leads[1].Priority)
}

func TestStagePersistsJSONReport(t *testing.T) {
	dir := t.TempDir()
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Timeline = []*state.TimelineEvent{{EventID: "e1"}}

	require.NoError(t, Stage(context.Background(), s, dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var jsonFile string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			jsonFile = filepath.Join(dir, e.Name())
		}
	}
	require.NotEmpty(t, jsonFile)

	data, err := os.ReadFile(jsonFile)
	require.NoError(t, err)
	var report jsonReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.TimelineEvents)
}

func TestBuildReportSummaryIncludesExpectedSections(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Patterns = []*state.Pattern{{Description: "suspicious term frequency"}}
	require.NoError(t, Stage(context.Background(), s, ""))

	assert.Contains(t, s.ReportSummary, "## Executive Summary")
	assert.Contains(t, s.ReportSummary, "## Key Findings")
	assert.Contains(t, s.ReportSummary, "## Hypotheses")
	assert.Contains(t, s.ReportSummary, "## Actionable Leads")
}
