package memory

import (
	"strings"

	"github.com/sherlock-intel/engine/internal/state"
)

// stmImportanceThreshold is the minimum importance for a short-term entry
// to be promoted during consolidation (original_source/core/memory/
// consolidate.py STM_IMPORTANCE_THRESHOLD).
const stmImportanceThreshold = 0.8

// Manager is the single facade over short-term, long-term, and episodic
// memory, plus consolidation — grounded on original_source/core/memory/
// memory_manager.py's MemoryManager.
type Manager struct {
	ShortTerm *ShortTerm
	LongTerm  *LongTerm
	Episodic  *Episodic
}

// NewManager wires the three memory layers over a knowledge-base
// directory.
func NewManager(knowledgeBaseDir string) *Manager {
	return &Manager{
		ShortTerm: NewShortTerm(),
		LongTerm:  NewLongTerm(knowledgeBaseDir),
		Episodic:  NewEpisodic(knowledgeBaseDir),
	}
}

// QueryPatternsByConcept is the facade's keyword-match "semantic memory"
// query over long-term patterns (memory_manager.py
// query_patterns_by_concept).
func (m *Manager) QueryPatternsByConcept(queryText, patternType string, minConfidence float64, limit int) ([]StoredPattern, error) {
	all, err := m.LongTerm.GetPatterns(patternType, minConfidence)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(queryText) == "" {
		if limit > 0 && limit < len(all) {
			return all[:limit], nil
		}
		return all, nil
	}

	words := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(queryText)) {
		words[w] = struct{}{}
	}

	type scored struct {
		score   int
		pattern StoredPattern
	}
	var ranked []scored
	for _, p := range all {
		text := strings.ToLower(p.Description + " " + strings.Join(p.Evidence, " "))
		score := 0
		for w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{score, p})
		}
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j-1].score < ranked[j].score; j-- {
			ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
		}
	}
	out := make([]StoredPattern, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.pattern)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// QueryEntityProfiles returns entity profiles whose key contains
// queryText (memory_manager.py query_entity_profiles).
func (m *Manager) QueryEntityProfiles(queryText string, limit int) (map[string][]EntityProfileEntry, error) {
	all, err := m.LongTerm.GetEntityProfiles("")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(queryText) == "" {
		return all, nil
	}
	q := strings.ToLower(queryText)
	out := map[string][]EntityProfileEntry{}
	for k, v := range all {
		if strings.Contains(strings.ToLower(k), q) {
			out[k] = v
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Consolidate performs the end-of-investigation promotion: important
// short-term entries are pushed into long-term storage, a history
// summary is appended, and short-term memory is cleared — grounded on
// original_source/core/memory/consolidate.py consolidate_memories, and
// invoked by the orchestrator after the compliance gate per spec §4.1
// step 7.
func (m *Manager) Consolidate(investigationID string, s *state.InvestigationState) error {
	threshold := stmImportanceThreshold
	important := m.ShortTerm.Retrieve(investigationID, "", &threshold)
	for _, item := range important {
		if asPattern, ok := item.Content.(StoredPattern); ok {
			asPattern.InvestigationID = investigationID
			if err := m.LongTerm.StorePattern(asPattern); err != nil {
				return err
			}
		}
	}

	for i, p := range s.Patterns {
		if i >= 20 {
			break
		}
		if err := m.LongTerm.StorePattern(StoredPattern{
			PatternType:     string(p.PatternType),
			Description:     p.Description,
			Evidence:        p.Evidence,
			Confidence:      p.Confidence,
			InvestigationID: investigationID,
		}); err != nil {
			return err
		}
	}

	status := ""
	if s.ComplianceReport != nil {
		status = string(s.ComplianceReport.OverallStatus)
	}
	if err := m.LongTerm.AppendInvestigationHistory(InvestigationHistoryEntry{
		InvestigationID:   investigationID,
		DocumentCount:     len(s.Documents),
		EntityCount:       len(s.Entities),
		RelationshipCount: len(s.Relationships),
		CurrentStep:       s.CurrentStep,
		OdosStatus:        status,
	}); err != nil {
		return err
	}

	m.ShortTerm.Clear(investigationID, "")
	return nil
}
