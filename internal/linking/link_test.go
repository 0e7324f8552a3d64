package linking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
	"github.com/sherlock-intel/engine/internal/vectorstore"
)

func TestChunkTextKeepsShortParagraphsWhole(t *testing.T) {
	text := "first paragraph here\n\nsecond paragraph here"
	chunks := chunkText(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first paragraph here", chunks[0])
}

func TestChunkTextWindowsLongParagraph(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "word "
	}
	chunks := chunkText(long)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), windowSize)
	}
}

func TestStageLinksSimilarDocumentsAboveThreshold(t *testing.T) {
	cfg := state.DefaultConfig()
	cfg.SimilarityThreshold = 0.3
	cfg.MinSharedEntities = 0
	s := state.NewInvestigationState("inv", "/tmp", cfg)

	s.ExtractedText["d1"] = "the offshore transaction involved a wire transfer of funds to a shell company"
	s.ExtractedText["d2"] = "the offshore transaction involved a wire transfer of funds to a different shell entity"
	s.ExtractedText["d3"] = "completely unrelated recipe for baking bread with yeast and flour"

	store := vectorstore.NewMemoryStore()
	require.NoError(t, Stage(context.Background(), s, store))

	require.NotEmpty(t, s.SemanticLinks)
	link := s.SemanticLinks[0]
	assert.Contains(t, []string{"d1", "d2"}, link.DocIDA)
	assert.NotEmpty(t, link.SharedConcepts)
}

func TestDetectContradictionsFlagsDisjointNumericTokens(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.ExtractedText["a"] = "the invoice totals 1000 dollars"
	s.ExtractedText["b"] = "the invoice totals 5000 dollars"

	links := map[string]*state.SemanticLink{"a\x00b": {DocIDA: "a", DocIDB: "b"}}
	detectContradictions(s, links)

	require.NotEmpty(t, s.Contradictions)
	assert.Equal(t, "numeric_mismatch", s.Contradictions[0].Type)
}

func TestBuildNarrativeThreadsPicksCentralDocument(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.ExtractedText["hub"] = "This is the central hub document. It ties everything together."
	s.ExtractedText["leaf1"] = "leaf one"
	s.ExtractedText["leaf2"] = "leaf two"

	links := map[string]*state.SemanticLink{
		"hub\x00leaf1": {DocIDA: "hub", DocIDB: "leaf1", SimilarityScore: 0.9},
		"hub\x00leaf2": {DocIDA: "hub", DocIDB: "leaf2", SimilarityScore: 0.8},
	}
	buildNarrativeThreads(s, links)

	require.Len(t, s.NarrativeThreads, 1)
	thread := s.NarrativeThreads[0]
	assert.Equal(t, "hub", thread.CentralDocID)
	assert.ElementsMatch(t, []string{"hub", "leaf1", "leaf2"}, thread.DocIDs)
	assert.Contains(t, thread.Title, "central hub")
}
