// Package memory implements the memory facade (spec §2/§4.13):
// short-term (per-run), long-term (patterns, profiles, history), an
// episodic log, and end-of-investigation consolidation.
//
// Grounded on original_source/core/memory/{short_term,long_term,episodic,
// consolidate,memory_manager}.py.
package memory

import "sync"

// ShortTermEntry is one stored item: hashes, processing progress, failed
// documents, quality scores, or an embeddings cache entry, per spec §9.
type ShortTermEntry struct {
	InvestigationID string
	AgentID         string
	Key             string
	Content         any
	Importance      float64
}

// ShortTerm is an in-memory, per-investigation (optionally per-agent)
// store, mirroring original_source/core/memory/short_term.py's
// module-level dict guarded by a Lock.
type ShortTerm struct {
	mu    sync.Mutex
	store map[string]ShortTermEntry
}

// NewShortTerm creates an empty short-term memory store.
func NewShortTerm() *ShortTerm {
	return &ShortTerm{store: map[string]ShortTermEntry{}}
}

func stKey(investigationID, agentID, key string) string {
	if agentID == "" {
		agentID = "global"
	}
	return investigationID + ":" + agentID + ":" + key
}

// Store saves content under (investigationID, agentID, key).
func (s *ShortTerm) Store(investigationID, key string, content any, importance float64, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[stKey(investigationID, agentID, key)] = ShortTermEntry{
		InvestigationID: investigationID,
		AgentID:         agentID,
		Key:             key,
		Content:         content,
		Importance:      importance,
	}
}

// Retrieve returns all entries for an investigation (optionally agent),
// optionally filtered by a minimum importance.
func (s *ShortTerm) Retrieve(investigationID, agentID string, minImportance *float64) []ShortTermEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := investigationID + ":"
	if agentID != "" {
		prefix += agentID + ":"
	}

	var out []ShortTermEntry
	for k, v := range s.store {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		if minImportance != nil && v.Importance < *minImportance {
			continue
		}
		out = append(out, v)
	}
	return out
}

// GetContent returns the content stored under an exact key, or nil.
func (s *ShortTerm) GetContent(investigationID, key, agentID string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.store[stKey(investigationID, agentID, key)]
	if !ok {
		return nil
	}
	return entry.Content
}

// Clear removes all entries for an investigation (optionally scoped to
// one agent).
func (s *ShortTerm) Clear(investigationID, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := investigationID + ":"
	if agentID != "" {
		prefix += agentID + ":"
	}
	for k := range s.store {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.store, k)
		}
	}
}
