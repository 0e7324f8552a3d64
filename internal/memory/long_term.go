package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	internalerrors "github.com/sherlock-intel/engine/internal/errors"
)

const (
	patternsFile            = "patterns.json"
	entityProfilesFile       = "entity_profiles.json"
	investigationHistoryFile = "investigation_history.json"
	maxPatternsRetained      = 500
	maxProfilesPerEntity     = 20
	maxHistoryRetained       = 100
)

// StoredPattern is a learned pattern persisted to long-term memory
// (original_source/core/memory/long_term.py store_pattern).
type StoredPattern struct {
	PatternType     string   `json:"pattern_type"`
	Description     string   `json:"description"`
	Evidence        []string `json:"evidence"`
	Confidence      float64  `json:"confidence"`
	InvestigationID string   `json:"investigation_id,omitempty"`
}

// EntityProfileEntry is one stored profile snapshot for an entity.
type EntityProfileEntry struct {
	Profile         map[string]any `json:"profile"`
	InvestigationID string         `json:"investigation_id,omitempty"`
}

// InvestigationHistoryEntry summarizes a completed investigation.
type InvestigationHistoryEntry struct {
	InvestigationID   string `json:"investigation_id"`
	DocumentCount     int    `json:"document_count"`
	EntityCount       int    `json:"entity_count"`
	RelationshipCount int    `json:"relationship_count"`
	CurrentStep       string `json:"current_step"`
	OdosStatus        string `json:"odos_status"`
}

// LongTerm is a filesystem-backed, append-only store under a knowledge
// base directory, mirroring original_source/core/memory/long_term.py.
type LongTerm struct {
	mu  sync.Mutex
	dir string
}

// NewLongTerm creates a long-term store rooted at dir (created on demand).
func NewLongTerm(dir string) *LongTerm {
	return &LongTerm{dir: dir}
}

func (lt *LongTerm) path(name string) string {
	return filepath.Join(lt.dir, name)
}

func (lt *LongTerm) loadJSON(name string, out any) error {
	path := lt.path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return internalerrors.FileSystemError(err, "failed to read long-term memory file")
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (lt *LongTerm) saveJSON(name string, in any) error {
	if err := os.MkdirAll(lt.dir, 0o755); err != nil {
		return internalerrors.FileSystemError(err, "failed to create knowledge base directory")
	}
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return internalerrors.InternalError("failed to marshal long-term memory payload")
	}
	if err := os.WriteFile(lt.path(name), data, 0o644); err != nil {
		return internalerrors.FileSystemError(err, "failed to write long-term memory file")
	}
	return nil
}

// StorePattern appends a learned pattern, capping retention at 500.
func (lt *LongTerm) StorePattern(p StoredPattern) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var all []StoredPattern
	if err := lt.loadJSON(patternsFile, &all); err != nil {
		return err
	}
	all = append(all, p)
	if len(all) > maxPatternsRetained {
		all = all[len(all)-maxPatternsRetained:]
	}
	return lt.saveJSON(patternsFile, all)
}

// GetPatterns returns stored patterns, optionally filtered by type and a
// minimum confidence.
func (lt *LongTerm) GetPatterns(patternType string, minConfidence float64) ([]StoredPattern, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var all []StoredPattern
	if err := lt.loadJSON(patternsFile, &all); err != nil {
		return nil, err
	}
	var out []StoredPattern
	for _, p := range all {
		if patternType != "" && p.PatternType != patternType {
			continue
		}
		if minConfidence > 0 && p.Confidence < minConfidence {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// StoreEntityProfile appends a profile snapshot under entityText, capping
// retention at 20 per entity.
func (lt *LongTerm) StoreEntityProfile(entityText string, profile map[string]any, investigationID string) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	all := map[string][]EntityProfileEntry{}
	if err := lt.loadJSON(entityProfilesFile, &all); err != nil {
		return err
	}
	key := entityText
	if key == "" {
		key = "_unknown"
	}
	all[key] = append(all[key], EntityProfileEntry{Profile: profile, InvestigationID: investigationID})
	if len(all[key]) > maxProfilesPerEntity {
		all[key] = all[key][len(all[key])-maxProfilesPerEntity:]
	}
	return lt.saveJSON(entityProfilesFile, all)
}

// GetEntityProfiles returns all profiles, or just entityText's if given.
func (lt *LongTerm) GetEntityProfiles(entityText string) (map[string][]EntityProfileEntry, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	all := map[string][]EntityProfileEntry{}
	if err := lt.loadJSON(entityProfilesFile, &all); err != nil {
		return nil, err
	}
	if entityText == "" {
		return all, nil
	}
	key := entityText
	if key == "" {
		key = "_unknown"
	}
	return map[string][]EntityProfileEntry{key: all[key]}, nil
}

// AppendInvestigationHistory appends a completed-investigation summary,
// capping retention at 100.
func (lt *LongTerm) AppendInvestigationHistory(entry InvestigationHistoryEntry) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var all []InvestigationHistoryEntry
	if err := lt.loadJSON(investigationHistoryFile, &all); err != nil {
		return err
	}
	all = append(all, entry)
	if len(all) > maxHistoryRetained {
		all = all[len(all)-maxHistoryRetained:]
	}
	return lt.saveJSON(investigationHistoryFile, all)
}

// GetInvestigationHistory returns the last limit summaries.
func (lt *LongTerm) GetInvestigationHistory(limit int) ([]InvestigationHistoryEntry, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var all []InvestigationHistoryEntry
	if err := lt.loadJSON(investigationHistoryFile, &all); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(all) {
		all = all[len(all)-limit:]
	}
	return all, nil
}
