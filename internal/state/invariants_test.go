package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckInvariants_Clean(t *testing.T) {
	s := NewInvestigationState("inv-1", "/tmp/uploads", DefaultConfig())
	s.Documents["doc1"] = &Document{DocID: "doc1", FileHash: "aaa", Status: StatusSuccess}
	s.Documents["doc2"] = &Document{DocID: "doc2", FileHash: "bbb", Status: StatusEncrypted}

	s.Entities["e1"] = &Entity{
		EntityID:  "e1",
		Documents: map[string]struct{}{"doc1": {}, "doc2": {}},
		Frequency: 2,
	}

	s.Relationships = []*Relationship{{
		SourceEntityID: "e1",
		TargetEntityID: "e2",
		Evidence:       map[string]struct{}{"doc1": {}},
		EvidenceCount:  1,
		Weight:         1,
	}}

	s.SemanticLinks = []*SemanticLink{{
		DocIDA: "doc1", DocIDB: "doc2", SimilarityScore: 0.9,
	}}

	t1 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	s.Timeline = []*TimelineEvent{
		{EventID: "ev1", Timestamp: &t1},
		{EventID: "ev2", Timestamp: &t2},
	}

	s.Classifications["doc1"] = &Classification{DocID: "doc1", PriorityScore: 0.85}

	s.ComplianceReport = &ComplianceReport{OverallStatus: ComplianceValid}

	assert.Empty(t, s.CheckInvariants())
}

func TestCheckInvariants_DuplicateHash(t *testing.T) {
	s := NewInvestigationState("inv-1", "/tmp", DefaultConfig())
	s.Documents["doc1"] = &Document{DocID: "doc1", FileHash: "same", Status: StatusSuccess}
	s.Documents["doc2"] = &Document{DocID: "doc2", FileHash: "same", Status: StatusSuccess}

	errs := s.CheckInvariants()
	assert.NotEmpty(t, errs)
}

func TestCheckInvariants_RelationshipNotSorted(t *testing.T) {
	s := NewInvestigationState("inv-1", "/tmp", DefaultConfig())
	s.Relationships = []*Relationship{{
		SourceEntityID: "zzz",
		TargetEntityID: "aaa",
		Evidence:       map[string]struct{}{"d1": {}},
		EvidenceCount:  1,
		Weight:         1,
	}}

	errs := s.CheckInvariants()
	assert.NotEmpty(t, errs)
}

func TestRelationshipConfidence(t *testing.T) {
	assert.InDelta(t, 0.75, RelationshipConfidence(1), 1e-9)
	assert.InDelta(t, 0.95, RelationshipConfidence(5), 1e-9)
	assert.InDelta(t, 0.95, RelationshipConfidence(100), 1e-9)
}

func TestRelevanceForPriority(t *testing.T) {
	assert.Equal(t, RelevanceCritical, RelevanceForPriority(0.9))
	assert.Equal(t, RelevanceHigh, RelevanceForPriority(0.65))
	assert.Equal(t, RelevanceMedium, RelevanceForPriority(0.45))
	assert.Equal(t, RelevanceLow, RelevanceForPriority(0.1))
}
