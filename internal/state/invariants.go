package state

import (
	"fmt"
	"sort"
)

// CheckInvariants validates the state invariants listed in spec §8 that
// are checkable independent of any single stage (content-hash uniqueness,
// entity frequency, relationship canonicalization, semantic link
// ordering, timeline ordering, priority rounding, compliance status
// domain). It returns every violation found, rather than failing fast, so
// callers (tests, the orchestrator's debug mode) can report all of them.
func (s *InvestigationState) CheckInvariants() []error {
	var errs []error

	seenHashes := map[string]string{}
	for id, d := range s.Documents {
		if d.Status != StatusSuccess && d.Status != StatusPartial &&
			d.Status != StatusEncrypted && d.Status != StatusUnsupported &&
			d.Status != StatusFailed {
			errs = append(errs, fmt.Errorf("document %s: invalid status %q", id, d.Status))
		}
		if other, ok := seenHashes[d.FileHash]; ok {
			errs = append(errs, fmt.Errorf("documents %s and %s share content hash %s", other, id, d.FileHash))
		} else {
			seenHashes[d.FileHash] = id
		}
	}

	for id, e := range s.Entities {
		if e.Frequency != len(e.Documents) {
			errs = append(errs, fmt.Errorf("entity %s: frequency %d != len(documents) %d", id, e.Frequency, len(e.Documents)))
		}
	}

	for i, r := range s.Relationships {
		if r.SourceEntityID == r.TargetEntityID {
			errs = append(errs, fmt.Errorf("relationship %d: endpoints not distinct (%s)", i, r.SourceEntityID))
		}
		if r.SourceEntityID > r.TargetEntityID {
			errs = append(errs, fmt.Errorf("relationship %d: endpoints not sorted (%s > %s)", i, r.SourceEntityID, r.TargetEntityID))
		}
		if r.EvidenceCount != len(r.Evidence) {
			errs = append(errs, fmt.Errorf("relationship %d: evidence_count %d != len(evidence) %d", i, r.EvidenceCount, len(r.Evidence)))
		}
		if r.Weight != float64(r.EvidenceCount) {
			errs = append(errs, fmt.Errorf("relationship %d: weight %v != evidence_count %d", i, r.Weight, r.EvidenceCount))
		}
	}

	threshold := 0.0
	if s.Config != nil {
		threshold = s.Config.SimilarityThreshold
	}
	for i, l := range s.SemanticLinks {
		if l.DocIDA >= l.DocIDB {
			errs = append(errs, fmt.Errorf("semantic link %d: doc_id_1 %q not < doc_id_2 %q", i, l.DocIDA, l.DocIDB))
		}
		if l.SimilarityScore < threshold {
			errs = append(errs, fmt.Errorf("semantic link %d: similarity %v below threshold %v", i, l.SimilarityScore, threshold))
		}
	}

	if !sort.SliceIsSorted(s.Timeline, func(i, j int) bool {
		a, b := s.Timeline[i].Timestamp, s.Timeline[j].Timestamp
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	}) {
		errs = append(errs, fmt.Errorf("timeline events not sorted non-decreasing by timestamp (nulls last)"))
	}

	for id, c := range s.Classifications {
		if c.PriorityScore < 0 || c.PriorityScore > 1 {
			errs = append(errs, fmt.Errorf("classification %s: priority %v out of [0,1]", id, c.PriorityScore))
		}
		rounded := roundTo(c.PriorityScore, 2)
		if rounded != c.PriorityScore {
			errs = append(errs, fmt.Errorf("classification %s: priority %v not rounded to 2 decimals", id, c.PriorityScore))
		}
	}

	if s.ComplianceReport != nil {
		switch s.ComplianceReport.OverallStatus {
		case ComplianceValid, ComplianceNeedsReview, ComplianceBlocked:
		default:
			errs = append(errs, fmt.Errorf("compliance_report.overall_status invalid: %q", s.ComplianceReport.OverallStatus))
		}
	}

	return errs
}

func roundTo(v float64, decimals int) float64 {
	mult := 1.0
	for i := 0; i < decimals; i++ {
		mult *= 10
	}
	return float64(int(v*mult+sign(v)*0.5)) / mult
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
