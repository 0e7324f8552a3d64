// Package synthesis implements the synthesis stage (spec §4.10):
// hypothesis derivation from patterns or centrality, lead generation,
// a markdown narrative report, and JSON/PDF report persistence.
//
// Grounded on original_source/agents/synthesis.py: hypothesis
// derivation order (patterns first, centrality fallback), the lead
// defaults, and the report section ordering.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
)

const (
	maxDerivedHypotheses  = 5
	maxReportHypotheses   = 10
	maxReportLeads        = 10
	maxReportFindings     = 5
	hypothesisTitleLength = 80
)

// Stage derives hypotheses and leads if not already present, builds
// the markdown narrative report, and persists JSON and (capability
// permitting) PDF reports under reportsDir (spec §4.10).
func Stage(ctx context.Context, s *state.InvestigationState, reportsDir string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(s.Hypotheses) == 0 {
		deriveFromPatterns(s)
	}
	if len(s.Hypotheses) == 0 {
		deriveFromCentrality(s)
	}
	normalizeHypotheses(s)

	generateLeads(s)

	s.ReportSummary = buildReportSummary(s)

	if reportsDir != "" {
		if err := persistReports(s, reportsDir); err != nil {
			logging.Warn("report persistence failed", "error", err)
		}
	}

	s.CurrentStep = "synthesis_complete"
	logging.Info("synthesis stage complete", "investigation_id", s.InvestigationID,
		"hypotheses", len(s.Hypotheses), "leads", len(s.Leads))
	return nil
}

func deriveFromPatterns(s *state.InvestigationState) {
	if len(s.Patterns) == 0 {
		return
	}
	n := len(s.Patterns)
	if n > maxDerivedHypotheses {
		n = maxDerivedHypotheses
	}
	for i, p := range s.Patterns[:n] {
		title := p.Description
		if len(title) > hypothesisTitleLength {
			title = title[:hypothesisTitleLength]
		}
		evidence := p.Evidence
		entities := p.EntitiesInvolved
		if len(evidence) == 0 {
			evidence = entities
		}
		s.Hypotheses = append(s.Hypotheses, &state.Hypothesis{
			HypothesisID:       fmt.Sprintf("H%d", i+1),
			Title:              title,
			Description:        p.Description,
			Confidence:         p.Confidence,
			SupportingEvidence: evidence,
			EntitiesInvolved:   entities,
			Status:             state.HypothesisUnderReview,
		})
	}
}

func deriveFromCentrality(s *state.InvestigationState) {
	if len(s.CentralityScores) == 0 {
		return
	}
	type scored struct {
		id    string
		score float64
	}
	var ranked []scored
	for id, score := range s.CentralityScores {
		ranked = append(ranked, scored{id, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > maxDerivedHypotheses {
		ranked = ranked[:maxDerivedHypotheses]
	}

	for i, r := range ranked {
		name := r.id
		if e := s.Entities[r.id]; e != nil {
			name = e.Text
		}
		title := fmt.Sprintf("Central entity: %s", name)
		if len(title) > hypothesisTitleLength {
			title = title[:hypothesisTitleLength]
		}
		s.Hypotheses = append(s.Hypotheses, &state.Hypothesis{
			HypothesisID:     fmt.Sprintf("H%d", i+1),
			Title:            title,
			Description:      fmt.Sprintf("Entity %q is central (score %.3f)", name, r.score),
			Confidence:        min1(2 * r.score),
			EntitiesInvolved: []string{r.id},
			NextSteps:        []string{"Review documents mentioning this entity"},
			Status:           state.HypothesisUnderReview,
		})
	}
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// normalizeHypotheses ensures title and status defaults, mirroring the
// original's hypothesis_to_dict normalization.
func normalizeHypotheses(s *state.InvestigationState) {
	for _, h := range s.Hypotheses {
		if h.Title == "" {
			title := h.Description
			if len(title) > hypothesisTitleLength {
				title = title[:hypothesisTitleLength]
			}
			h.Title = title
		}
		if h.Status == "" {
			h.Status = state.HypothesisUnderReview
		}
	}
}

func generateLeads(s *state.InvestigationState) {
	if len(s.Leads) == 0 && len(s.Timeline) > 0 {
		s.Leads = append(s.Leads, &state.Lead{
			LeadID:        "L1",
			Action:        "Review chronological events",
			Priority:      state.LeadHigh,
			Justification: fmt.Sprintf("%d timeline events", len(s.Timeline)),
		})
	}
	if len(s.SemanticLinks) > 0 {
		hasSemanticLead := false
		for _, l := range s.Leads {
			if strings.Contains(strings.ToLower(l.Action), "linked documents") {
				hasSemanticLead = true
				break
			}
		}
		if !hasSemanticLead {
			s.Leads = append(s.Leads, &state.Lead{
				LeadID:        fmt.Sprintf("L%d", len(s.Leads)+1),
				Action:        "Review linked documents",
				Priority:      state.LeadMedium,
				Justification: fmt.Sprintf("%d semantic links", len(s.SemanticLinks)),
			})
		}
	}
}

func buildReportSummary(s *state.InvestigationState) string {
	var b strings.Builder

	b.WriteString("## Executive Summary\n")
	fmt.Fprintf(&b, "This investigation processed %d documents, extracting %d entities and %d relationships.\n",
		len(s.Documents), len(s.Entities), len(s.Relationships))
	if len(s.Timeline) > 0 {
		fmt.Fprintf(&b, "Timeline: %d events reconstructed.\n", len(s.Timeline))
	}
	b.WriteString("\n")

	b.WriteString("## Key Findings\n")
	n := len(s.Patterns)
	if n > maxReportFindings {
		n = maxReportFindings
	}
	wroteFinding := false
	for _, p := range s.Patterns[:n] {
		if p.Description == "" {
			continue
		}
		desc := p.Description
		if len(desc) > 200 {
			desc = desc[:200]
		}
		fmt.Fprintf(&b, "- %s\n", desc)
		wroteFinding = true
	}
	if !wroteFinding {
		b.WriteString("- No structured patterns identified; see hypotheses and leads.\n")
	}
	b.WriteString("\n")

	b.WriteString("## Hypotheses (confidence-ranked)\n")
	ranked := make([]*state.Hypothesis, len(s.Hypotheses))
	copy(ranked, s.Hypotheses)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Confidence > ranked[j].Confidence })
	if len(ranked) > maxReportHypotheses {
		ranked = ranked[:maxReportHypotheses]
	}
	for _, h := range ranked {
		title := h.Title
		if title == "" {
			title = h.Description
		}
		if len(title) > 100 {
			title = title[:100]
		}
		fmt.Fprintf(&b, "- [%s] %s (confidence: %.2f)\n", h.HypothesisID, title, h.Confidence)
	}
	b.WriteString("\n")

	b.WriteString("## Actionable Leads\n")
	leads := s.Leads
	if len(leads) > maxReportLeads {
		leads = leads[:maxReportLeads]
	}
	for _, l := range leads {
		action := l.Action
		if len(action) > 120 {
			action = action[:120]
		}
		line := fmt.Sprintf("- [%s] %s", l.Priority, action)
		if l.Justification != "" {
			justification := l.Justification
			if len(justification) > 80 {
				justification = justification[:80]
			}
			line += " — " + justification
		}
		fmt.Fprintf(&b, "%s\n", line)
	}
	b.WriteString("\n")

	if len(s.Timeline) > 0 {
		b.WriteString("## Timeline (summary)\n")
		fmt.Fprintf(&b, "%d events; review full timeline for chronology.\n", len(s.Timeline))
	}

	if s.GraphMetadata.NodeCount > 0 || s.GraphMetadata.EdgeCount > 0 {
		b.WriteString("## Network\n")
		fmt.Fprintf(&b, "Graph: %d nodes, %d edges.\n", s.GraphMetadata.NodeCount, s.GraphMetadata.EdgeCount)
	}

	return b.String()
}

type jsonReport struct {
	DocumentCount      int                  `json:"document_count"`
	EntitiesCount      int                  `json:"entities_count"`
	RelationshipsCount int                  `json:"relationships_count"`
	TimelineEvents     int                  `json:"timeline_events"`
	SemanticLinks      int                  `json:"semantic_links"`
	Hypotheses         []*state.Hypothesis  `json:"hypotheses"`
	Leads              []*state.Lead        `json:"leads"`
	ReportSummary      string               `json:"report_summary"`
}

func persistReports(s *state.InvestigationState, reportsDir string) error {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}
	ts := time.Now().UTC().Format("20060102_150405")

	jsonPath := filepath.Join(reportsDir, fmt.Sprintf("report_%s.json", ts))
	if err := writeJSONReport(s, jsonPath); err != nil {
		return err
	}

	pdfPath := filepath.Join(reportsDir, fmt.Sprintf("report_%s.pdf", ts))
	if err := writePDFReport(s, pdfPath); err != nil {
		logging.Warn("pdf report generation failed", "error", err)
	}
	return nil
}

func writeJSONReport(s *state.InvestigationState, path string) error {
	report := jsonReport{
		DocumentCount:      len(s.Documents),
		EntitiesCount:      len(s.Entities),
		RelationshipsCount: len(s.Relationships),
		TimelineEvents:     len(s.Timeline),
		SemanticLinks:      len(s.SemanticLinks),
		Hypotheses:         s.Hypotheses,
		Leads:              s.Leads,
		ReportSummary:      s.ReportSummary,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logging.Info("json report written", "path", path)
	return nil
}

// writePDFReport builds a one-page summary PDF via gofpdf, standing in
// for reportlab's canvas usage in the original implementation.
func writePDFReport(s *state.InvestigationState, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Investigation Report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Documents: %d", len(s.Documents)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Entities: %d", len(s.Entities)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Relationships: %d", len(s.Relationships)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Timeline events: %d", len(s.Timeline)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Hypotheses")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	n := len(s.Hypotheses)
	if n > maxReportFindings {
		n = maxReportFindings
	}
	for _, h := range s.Hypotheses[:n] {
		desc := h.Description
		if len(desc) > 90 {
			desc = desc[:90] + "..."
		}
		pdf.Cell(0, 6, desc)
		pdf.Ln(5)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	logging.Info("pdf report written", "path", path)
	return nil
}
