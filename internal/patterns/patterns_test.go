package patterns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func newEntity(id, text string, docs ...string) *state.Entity {
	e := &state.Entity{
		EntityID:  id,
		Text:      text,
		Type:      state.EntityOrg,
		Documents: map[string]struct{}{},
	}
	for _, d := range docs {
		e.Documents[d] = struct{}{}
	}
	return e
}

func TestEmitDegreePatternsRanksHubEntity(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Entities["e1"] = newEntity("e1", "Hub Corp")
	s.Entities["e2"] = newEntity("e2", "Leaf One")
	s.Entities["e3"] = newEntity("e3", "Leaf Two")
	s.Entities["e4"] = newEntity("e4", "Leaf Three")

	s.Relationships = []*state.Relationship{
		{SourceEntityID: "e1", TargetEntityID: "e2", Weight: 1},
		{SourceEntityID: "e1", TargetEntityID: "e3", Weight: 1},
		{SourceEntityID: "e1", TargetEntityID: "e4", Weight: 1},
	}

	require.NoError(t, Stage(context.Background(), s))

	var hubPattern *state.Pattern
	for _, p := range s.Patterns {
		if p.PatternType == state.PatternHighDegree && p.EntitiesInvolved[0] == "Hub Corp" {
			hubPattern = p
		}
	}
	require.NotNil(t, hubPattern)
	assert.Equal(t, 3, hubPattern.Occurrences)
}

func TestEmitCommunityPatternsRespectsMinClusterSize(t *testing.T) {
	cfg := state.DefaultConfig()
	cfg.MinClusterSize = 2
	s := state.NewInvestigationState("inv", "/tmp", cfg)
	s.Entities["e1"] = newEntity("e1", "A")
	s.Entities["e2"] = newEntity("e2", "B")
	s.Entities["e3"] = newEntity("e3", "C")

	s.Relationships = []*state.Relationship{
		{SourceEntityID: "e1", TargetEntityID: "e2", Weight: 5},
	}

	require.NoError(t, Stage(context.Background(), s))

	found := false
	for _, p := range s.Patterns {
		if p.PatternType == state.PatternCommunity {
			found = true
			assert.GreaterOrEqual(t, p.Occurrences, 2)
		}
	}
	assert.True(t, found)
}

func TestEmitTemporalSequencePatternSummarizesOrder(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Timeline = []*state.TimelineEvent{
		{EventID: "e1", Type: state.EventMeeting},
		{EventID: "e2", Type: state.EventTransaction},
	}

	require.NoError(t, Stage(context.Background(), s))

	var found bool
	for _, p := range s.Patterns {
		if p.PatternType == state.PatternTemporalSequence {
			found = true
			assert.Contains(t, p.Description, "MEETING")
			assert.Contains(t, p.Description, "TRANSACTION")
		}
	}
	assert.True(t, found)
}

func TestEmitTermFrequencyPatternsFlagsOutlier(t *testing.T) {
	cfg := state.DefaultConfig()
	cfg.OutlierZThreshold = 1.0
	s := state.NewInvestigationState("inv", "/tmp", cfg)

	repeated := ""
	for i := 0; i < 50; i++ {
		repeated += "offshore "
	}
	s.ExtractedText["d1"] = repeated + "contract report finance legal notes"
	s.ExtractedText["d2"] = "contract report finance legal notes"

	require.NoError(t, Stage(context.Background(), s))

	var offshorePattern *state.Pattern
	for _, p := range s.Patterns {
		if p.PatternType == state.PatternFrequency && p.Occurrences == 50 {
			offshorePattern = p
		}
	}
	require.NotNil(t, offshorePattern)
	assert.Equal(t, "high", offshorePattern.Severity)

	foundAnomaly := false
	for _, a := range s.Anomalies {
		if a.Category == "term_frequency_outlier" {
			foundAnomaly = true
		}
	}
	assert.True(t, foundAnomaly)
}
