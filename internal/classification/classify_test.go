package classification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func TestStageClassifiesShortDocumentAsFragment(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Documents["d1"] = &state.Document{DocID: "d1"}
	s.ExtractedText["d1"] = "too short"

	require.NoError(t, Stage(context.Background(), s))

	c := s.Classifications["d1"]
	require.NotNil(t, c)
	assert.Equal(t, "fragment", c.DocumentType)
	assert.Equal(t, 0.3, c.PriorityScore)
}

func TestStageBoostsFinanceContractWithConfidentialKeyword(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Documents["d1"] = &state.Document{DocID: "d1", Language: "en"}

	text := "This CONFIDENTIAL agreement is made whereas the party of the first part agrees to a wire transfer payment for this transaction. "
	for i := 0; i < 10; i++ {
		text += "Additional filler contract language to exceed the word count threshold for this document. "
	}
	s.ExtractedText["d1"] = text

	require.NoError(t, Stage(context.Background(), s))

	c := s.Classifications["d1"]
	require.NotNil(t, c)
	assert.Equal(t, "contract", c.DocumentType)
	assert.Equal(t, "finance", c.Domain)
	assert.Greater(t, c.PriorityScore, 0.5)
	assert.LessOrEqual(t, c.PriorityScore, 1.0)
}

func TestStageUnknownLanguagePenalty(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.Documents["d1"] = &state.Document{DocID: "d1", Language: "unknown"}

	text := ""
	for i := 0; i < 60; i++ {
		text += "zzzz qqqq wwww "
	}
	s.ExtractedText["d1"] = text

	require.NoError(t, Stage(context.Background(), s))

	c := s.Classifications["d1"]
	require.NotNil(t, c)
	assert.Equal(t, "unknown", c.Language)
}

func TestBestKeywordMatchReturnsOtherWhenNoHits(t *testing.T) {
	label, hits, conf := bestKeywordMatch("nothing relevant here", domainKeywords)
	assert.Equal(t, "other", label)
	assert.Empty(t, hits)
	assert.Zero(t, conf)
}
