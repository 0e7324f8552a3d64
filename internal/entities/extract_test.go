package entities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func newTestState() *state.InvestigationState {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	return s
}

func TestRegexNERExtractsEmail(t *testing.T) {
	ner := RegexNER{}
	mentions := ner.Extract("Contact john.doe@example.com for details.", state.DefaultConfig().EntityTypeWhitelist)
	found := false
	for _, m := range mentions {
		if m.Type == state.EntityEmail {
			found = true
			assert.Equal(t, "john.doe@example.com", m.NormalizedText)
		}
	}
	assert.True(t, found, "expected an email mention")
}

func TestRegexNERExtractsCPF(t *testing.T) {
	ner := RegexNER{}
	mentions := ner.Extract("O CPF do suspeito é 123.456.789-09.", state.DefaultConfig().EntityTypeWhitelist)
	found := false
	for _, m := range mentions {
		if m.Type == state.EntityCPF {
			found = true
		}
	}
	assert.True(t, found, "expected a CPF mention")
}

func TestStageMergesEntitiesByNormalizedTextAndType(t *testing.T) {
	s := newTestState()
	s.Documents["d1"] = &state.Document{DocID: "d1"}
	s.Documents["d2"] = &state.Document{DocID: "d2"}
	s.ExtractedText["d1"] = "John Smith met with Jane Doe regarding the contract. Contact john@corp.com."
	s.ExtractedText["d2"] = "John Smith later denied any involvement in the matter."

	require.NoError(t, Stage(context.Background(), s, RegexNER{}))

	var johnEntity *state.Entity
	for _, e := range s.Entities {
		if e.NormalizedText == "John Smith" {
			johnEntity = e
		}
	}
	require.NotNil(t, johnEntity, "expected a merged John Smith entity")
	assert.Equal(t, 2, johnEntity.Frequency)
	assert.ElementsMatch(t, []string{"d1", "d2"}, johnEntity.DocumentList())
}

func TestStageBuildsCoOccurrenceRelationships(t *testing.T) {
	s := newTestState()
	s.Documents["d1"] = &state.Document{DocID: "d1"}
	s.ExtractedText["d1"] = "John Smith and Jane Doe signed the agreement together."

	require.NoError(t, Stage(context.Background(), s, RegexNER{}))

	require.NotEmpty(t, s.Relationships)
	rel := s.Relationships[0]
	assert.Equal(t, state.RelCoOccurrence, rel.RelationshipType)
	assert.Equal(t, 1, rel.EvidenceCount)
	assert.Less(t, rel.SourceEntityID, rel.TargetEntityID)
}

func TestStageSkipsDocumentsUnderTenCharacters(t *testing.T) {
	s := newTestState()
	s.Documents["d1"] = &state.Document{DocID: "d1"}
	s.ExtractedText["d1"] = "hi"

	require.NoError(t, Stage(context.Background(), s, RegexNER{}))
	assert.Empty(t, s.Entities)
}
