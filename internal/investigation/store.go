// Package investigation implements the investigation record persistence
// contract of spec §6: a filesystem directory per investigation holding
// meta.json (id, name, created_at, updated_at, status, version, batches)
// and state.json (full state serialization).
//
// Grounded on original_source/core/investigation_store.py.
package investigation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	internalerrors "github.com/sherlock-intel/engine/internal/errors"
)

const (
	metaFile  = "meta.json"
	stateFile = "state.json"
)

// BatchEntry records one incremental ingestion batch appended to an
// investigation's meta.
type BatchEntry struct {
	BatchID           string    `json:"batch_id"`
	AddedAt           time.Time `json:"added_at"`
	DocCount          int       `json:"doc_count"`
	JobID             string    `json:"job_id,omitempty"`
	EntityCountBefore int       `json:"entity_count_before,omitempty"`
	EntityCountAfter  int       `json:"entity_count_after,omitempty"`
}

// Meta is the investigation's directory-level metadata record.
type Meta struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Status    string       `json:"status"`
	Version   int          `json:"version"`
	Batches   []BatchEntry `json:"batches"`
}

// Store manages investigation directories under a root path.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) invDir(investigationID string) string {
	return filepath.Join(s.root, investigationID)
}

// Create initializes a new investigation directory and returns its id
// (generated via uuid if investigationID is empty).
func (s *Store) Create(investigationID, name string) (string, error) {
	if investigationID == "" {
		investigationID = uuid.NewString()
	}
	dir := s.invDir(investigationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", internalerrors.FileSystemError(err, "failed to create investigation directory")
	}
	if name == "" {
		name = investigationID
	}
	now := time.Now().UTC()
	meta := Meta{
		ID:        investigationID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    "active",
		Version:   1,
	}
	if err := s.writeMeta(investigationID, meta); err != nil {
		return "", err
	}
	return investigationID, nil
}

// ListAll returns every investigation's meta, most recently updated first.
func (s *Store) ListAll() ([]Meta, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, internalerrors.FileSystemError(err, "failed to list investigations directory")
	}
	var metas []Meta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := s.GetMeta(e.Name())
		if err != nil || m == nil {
			continue
		}
		metas = append(metas, *m)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].UpdatedAt.After(metas[j].UpdatedAt) })
	return metas, nil
}

// GetMeta returns the meta record for one investigation, or nil if absent.
func (s *Store) GetMeta(investigationID string) (*Meta, error) {
	path := filepath.Join(s.invDir(investigationID), metaFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, internalerrors.FileSystemError(err, "failed to read investigation meta")
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, internalerrors.InternalError("failed to parse investigation meta")
	}
	return &m, nil
}

func (s *Store) writeMeta(investigationID string, m Meta) error {
	dir := s.invDir(investigationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internalerrors.FileSystemError(err, "failed to create investigation directory")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return internalerrors.InternalError("failed to marshal investigation meta")
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0o644); err != nil {
		return internalerrors.FileSystemError(err, "failed to write investigation meta")
	}
	return nil
}

// UpdateMeta merges updates into the existing meta and bumps updated_at.
func (s *Store) UpdateMeta(investigationID string, mutate func(*Meta)) error {
	m, err := s.GetMeta(investigationID)
	if err != nil {
		return err
	}
	if m == nil {
		return internalerrors.ValidationErrorf("investigation %s not found", investigationID)
	}
	mutate(m)
	m.UpdatedAt = time.Now().UTC()
	return s.writeMeta(investigationID, *m)
}

// AppendBatch appends a batch entry, capping history at 100 entries.
func (s *Store) AppendBatch(investigationID string, batch BatchEntry) error {
	return s.UpdateMeta(investigationID, func(m *Meta) {
		m.Batches = append(m.Batches, batch)
		if len(m.Batches) > 100 {
			m.Batches = m.Batches[len(m.Batches)-100:]
		}
	})
}

// SaveState persists a JSON-serializable state snapshot to state.json and
// updates meta.version/updated_at to match.
func (s *Store) SaveState(investigationID string, version int, payload any) error {
	dir := s.invDir(investigationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internalerrors.FileSystemError(err, "failed to create investigation directory")
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return internalerrors.InternalError("failed to marshal investigation state")
	}
	if err := os.WriteFile(filepath.Join(dir, stateFile), data, 0o644); err != nil {
		return internalerrors.FileSystemError(err, "failed to write investigation state")
	}

	if m, err := s.GetMeta(investigationID); err == nil && m != nil {
		m.Version = version
		m.UpdatedAt = time.Now().UTC()
		return s.writeMeta(investigationID, *m)
	}
	now := time.Now().UTC()
	return s.writeMeta(investigationID, Meta{ID: investigationID, Name: investigationID, CreatedAt: now, UpdatedAt: now, Status: "active", Version: version})
}

// LoadState reads a raw state.json payload into out, returning (false,
// nil) if no snapshot exists yet.
func (s *Store) LoadState(investigationID string, out any) (bool, error) {
	path := filepath.Join(s.invDir(investigationID), stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, internalerrors.FileSystemError(err, "failed to read investigation state")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, internalerrors.InternalError("failed to parse investigation state")
	}
	return true, nil
}
