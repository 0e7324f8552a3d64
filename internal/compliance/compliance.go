// Package compliance implements the compliance gate (spec §4.11):
// drift/fidelity/reasoning-coherence metrics, ODOS ethical rule
// checks, and the final VALID/NEEDS_REVIEW/BLOCKED decision.
//
// Grounded on original_source/pqms/guardian.py (ΔE and bias alerts),
// pqms/metrics.py (fidelity, RCF), pqms/odos.py (ODOS rule checks),
// and agents/odos_guardian.py (the decision table and ODOS-override
// logic).
package compliance

import (
	"context"
	"fmt"
	"math"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
)

const biasEntityThreshold = 3

// Stage runs the three compliance computations and applies the
// decision table (spec §4.11). The only error it returns is the
// context's, when ctx is already cancelled on entry; any other
// exception-equivalent condition is captured as a NEEDS_REVIEW report
// with zeroed metrics, matching the original's catch-all behavior.
func Stage(ctx context.Context, s *state.InvestigationState) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	report := &state.ComplianceReport{}
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("compliance gate panic recovered", "error", r)
			s.ComplianceReport = &state.ComplianceReport{
				OverallStatus:   state.ComplianceNeedsReview,
				Recommendations: []string{fmt.Sprintf("%v", r)},
			}
		}
	}()

	deltaE, biasAlerts := computeDeltaE(s)
	fidelity := computeFidelity(s)
	rcf := computeRCF(s)

	report.DeltaE = deltaE
	report.Fidelity = fidelity
	report.RCF = rcf
	report.BiasAlerts = biasAlerts

	odosStatus, violations, odosMessage := validateODOS(s)
	report.Violations = violations

	cfg := s.Config

	switch {
	case odosStatus == odosBlocked:
		report.OverallStatus = state.ComplianceBlocked
		report.Recommendations = []string{"Resolve critical ODOS violations (e.g. PII) before publishing."}
	case deltaE < cfg.ComplianceMaxDeltaEValid && fidelity >= cfg.ComplianceMinFidelityValid && rcf >= cfg.ComplianceMinRCF:
		report.OverallStatus = state.ComplianceValid
	case deltaE < cfg.ComplianceMaxDeltaEReview && fidelity >= cfg.ComplianceMinFidelityReview:
		report.OverallStatus = state.ComplianceNeedsReview
		report.Recommendations = []string{"Human review recommended: delta_e or fidelity near threshold."}
	default:
		report.OverallStatus = state.ComplianceBlocked
		report.Recommendations = []string{
			fmt.Sprintf("Delta-E %.3f or fidelity %.3f below threshold.", deltaE, fidelity),
			"Improve evidence backing or reduce contradictions before publishing.",
		}
	}

	if odosStatus == odosNeedsReview && report.OverallStatus == state.ComplianceValid {
		report.OverallStatus = state.ComplianceNeedsReview
		report.Recommendations = append([]string{odosMessage}, report.Recommendations...)
	}

	s.ComplianceReport = report
	s.CurrentStep = "compliance_gate_complete"
	logging.Info("compliance gate complete", "investigation_id", s.InvestigationID,
		"status", report.OverallStatus, "delta_e", deltaE, "fidelity", fidelity, "rcf", rcf)
	return nil
}

// computeDeltaE implements spec §4.11 item 1: contradiction ratio,
// raised by confidence variance when ≥2 hypotheses exist, plus bias
// alerts for over-concentrated entities.
func computeDeltaE(s *state.InvestigationState) (float64, []string) {
	numLinks := len(s.SemanticLinks)
	if numLinks < 1 {
		numLinks = 1
	}
	deltaE := min1(float64(len(s.Contradictions)) / float64(numLinks))

	var biasAlerts []string
	if len(s.Hypotheses) >= 2 {
		confs := make([]float64, len(s.Hypotheses))
		for i, h := range s.Hypotheses {
			confs[i] = h.Confidence
		}
		variance := sampleVariance(confs)
		deltaE = math.Max(deltaE, min1(2*variance))

		entityCounts := map[string]int{}
		entityDocs := map[string]map[string]struct{}{}
		for _, h := range s.Hypotheses {
			for _, eid := range h.EntitiesInvolved {
				entityCounts[eid]++
				if entityDocs[eid] == nil {
					entityDocs[eid] = map[string]struct{}{}
				}
				for _, doc := range h.DocIDsSupporting {
					entityDocs[eid][doc] = struct{}{}
				}
			}
		}
		for _, eid := range sortedKeys(entityCounts) {
			if entityCounts[eid] >= biasEntityThreshold && len(entityDocs[eid]) < 2 {
				biasAlerts = append(biasAlerts, fmt.Sprintf(
					"Possible confirmation bias: entity %s in %d hypotheses with few distinct docs", eid, entityCounts[eid]))
			}
		}
	}

	return deltaE, biasAlerts
}

// computeFidelity implements spec §4.11 item 2.
func computeFidelity(s *state.InvestigationState) float64 {
	if len(s.Hypotheses) == 0 {
		if len(s.CryptoSegments) > 0 {
			return float64(len(s.DecryptedContent)) / float64(len(s.CryptoSegments))
		}
		return 0.99
	}

	entityIDs := map[string]struct{}{}
	for _, h := range s.Hypotheses {
		for _, eid := range h.EntitiesInvolved {
			entityIDs[eid] = struct{}{}
		}
	}
	var sum float64
	var count int
	for eid := range entityIDs {
		if e := s.Entities[eid]; e != nil {
			sum += e.Confidence
			count++
		}
	}
	if count == 0 {
		return 0.99
	}
	return sum / float64(count)
}

// computeRCF implements spec §4.11 item 3.
func computeRCF(s *state.InvestigationState) float64 {
	if len(s.Hypotheses) < 2 {
		return 0.95
	}
	numLinks := len(s.SemanticLinks)
	if numLinks < 1 {
		numLinks = 1
	}
	coherence := 1 - min1(float64(len(s.Contradictions))/float64(numLinks))
	return math.Max(0, math.Min(1, coherence))
}

type odosStatus string

const (
	odosValid       odosStatus = "VALID"
	odosNeedsReview odosStatus = "NEEDS_REVIEW"
	odosBlocked     odosStatus = "BLOCKED"
)

// validateODOS implements spec §4.11 item 4: critical PII blocks
// immediately; an unbacked entity (no relationship evidence and no
// supporting documents) triggers review; otherwise valid.
func validateODOS(s *state.InvestigationState) (odosStatus, []state.ComplianceViolation, string) {
	for _, f := range s.CryptographyFindings {
		if f.FindingType == "pii_critical" {
			return odosBlocked, []state.ComplianceViolation{{
				Type: "pii_exposure", Severity: "critical", Description: "critical PII detected", EntityRef: f.DocumentID,
			}}, "PII critical: review required"
		}
	}

	entityToDocs := map[string]map[string]struct{}{}
	for _, r := range s.Relationships {
		for _, eid := range []string{r.SourceEntityID, r.TargetEntityID} {
			if entityToDocs[eid] == nil {
				entityToDocs[eid] = map[string]struct{}{}
			}
			for doc := range r.Evidence {
				entityToDocs[eid][doc] = struct{}{}
			}
		}
	}

	for _, h := range s.Hypotheses {
		for _, eid := range h.EntitiesInvolved {
			if eid == "" {
				continue
			}
			if len(entityToDocs[eid]) == 0 && len(h.DocIDsSupporting) == 0 {
				return odosNeedsReview, []state.ComplianceViolation{{
					Type: "unbacked_entity", Severity: "medium",
					Description: fmt.Sprintf("entity %s in findings without evidence in relationships or doc_ids", eid),
					EntityRef:   eid,
				}}, fmt.Sprintf("Entity %s in findings without evidence in relationships or doc_ids", eid)
			}
		}
	}

	return odosValid, nil, "ODOS validation passed"
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func sampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values)-1)
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
