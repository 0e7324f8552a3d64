package memory

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	internalerrors "github.com/sherlock-intel/engine/internal/errors"
)

// Episode is one recorded per-agent decision (original_source/core/
// memory/episodic.py: action, reasoning, success, as JSON-Lines).
type Episode struct {
	AgentID         string         `json:"agent_id"`
	InvestigationID string         `json:"investigation_id"`
	Action          string         `json:"action"`
	Reasoning       string         `json:"reasoning"`
	Success         bool           `json:"success"`
	Timestamp       time.Time      `json:"timestamp"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Episodic is a JSON-Lines append log under dir/episodic/episodes.jsonl.
type Episodic struct {
	mu  sync.Mutex
	dir string
}

// NewEpisodic creates an episodic log rooted at dir.
func NewEpisodic(dir string) *Episodic {
	return &Episodic{dir: filepath.Join(dir, "episodic")}
}

func (e *Episodic) filePath() string {
	return filepath.Join(e.dir, "episodes.jsonl")
}

// Record appends one episode, truncating reasoning to 500 characters as
// the original does.
func (e *Episodic) Record(agentID, investigationID, action, reasoning string, success bool, metadata map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(reasoning) > 500 {
		reasoning = reasoning[:500]
	}
	ep := Episode{
		AgentID:         agentID,
		InvestigationID: investigationID,
		Action:          action,
		Reasoning:       reasoning,
		Success:         success,
		Timestamp:       time.Now().UTC(),
		Metadata:        metadata,
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return internalerrors.FileSystemError(err, "failed to create episodic memory directory")
	}
	f, err := os.OpenFile(e.filePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return internalerrors.FileSystemError(err, "failed to open episodic log")
	}
	defer f.Close()

	line, err := json.Marshal(ep)
	if err != nil {
		return internalerrors.InternalError("failed to marshal episode")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return internalerrors.FileSystemError(err, "failed to append episode")
	}
	return nil
}

// Get returns up to limit episodes, newest last, optionally filtered by
// investigation/agent id.
func (e *Episodic) Get(investigationID, agentID string, limit int) ([]Episode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.Open(e.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, internalerrors.FileSystemError(err, "failed to open episodic log")
	}
	defer f.Close()

	var all []Episode
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ep Episode
		if json.Unmarshal(scanner.Bytes(), &ep) != nil {
			continue
		}
		if investigationID != "" && ep.InvestigationID != investigationID {
			continue
		}
		if agentID != "" && ep.AgentID != agentID {
			continue
		}
		all = append(all, ep)
	}
	if limit > 0 && limit < len(all) {
		all = all[len(all)-limit:]
	}
	return all, nil
}
