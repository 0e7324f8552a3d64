// Package ledger implements the persistence and resume ledger (spec
// §4.12): a durable table keyed by (document_hash, investigation_id)
// recording per-document processing status, used exclusively by
// ingestion to skip DONE documents and retry FAILED ones.
//
// Grounded on the teacher's internal/database.StagingClient upsert idiom
// (INSERT ... ON CONFLICT ... DO UPDATE over database/sql + lib/pq),
// generalized from a single-column conflict target to the composite key
// original_source/core/persistence.py uses, and backed by SQLite
// (github.com/mattn/go-sqlite3) the way the original's own ledger is.
package ledger

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	internalerrors "github.com/sherlock-intel/engine/internal/errors"
)

// Status is the processing state of one document within one investigation.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
)

// Entry is one row of the ledger.
type Entry struct {
	DocumentHash   string
	InvestigationID string
	Status         Status
	LastStage      string
	RetryCount     int
	UpdatedAt      time.Time
}

// Ledger wraps a SQLite-backed table with the composite-key upsert
// operations from spec §4.12.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, internalerrors.DatabaseError(err, "failed to open ledger database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, internalerrors.DatabaseError(err, "failed to ping ledger database")
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS document_ledger (
		document_hash    TEXT NOT NULL,
		investigation_id TEXT NOT NULL,
		status           TEXT NOT NULL,
		last_stage       TEXT NOT NULL DEFAULT '',
		retry_count      INTEGER NOT NULL DEFAULT 0,
		updated_at       TIMESTAMP NOT NULL,
		PRIMARY KEY (document_hash, investigation_id)
	);`
	if _, err := l.db.Exec(schema); err != nil {
		return internalerrors.DatabaseError(err, "failed to migrate ledger schema")
	}
	return nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// MarkStart upserts a PROCESSING row, matching the teacher's
// ON-CONFLICT-DO-UPDATE pattern (staging.go StoreRepository) applied to
// the composite (document_hash, investigation_id) key.
func (l *Ledger) MarkStart(documentHash, investigationID string) error {
	const q = `
	INSERT INTO document_ledger (document_hash, investigation_id, status, last_stage, retry_count, updated_at)
	VALUES (?, ?, ?, 'ingestion', 0, ?)
	ON CONFLICT(document_hash, investigation_id) DO UPDATE SET
		status = excluded.status,
		last_stage = excluded.last_stage,
		updated_at = excluded.updated_at
	`
	_, err := l.db.Exec(q, documentHash, investigationID, StatusProcessing, time.Now().UTC())
	if err != nil {
		return internalerrors.DatabaseError(err, "failed to mark document start")
	}
	return nil
}

// MarkSuccess upserts a DONE row.
func (l *Ledger) MarkSuccess(documentHash, investigationID, stage string) error {
	const q = `
	INSERT INTO document_ledger (document_hash, investigation_id, status, last_stage, retry_count, updated_at)
	VALUES (?, ?, ?, ?, 0, ?)
	ON CONFLICT(document_hash, investigation_id) DO UPDATE SET
		status = excluded.status,
		last_stage = excluded.last_stage,
		updated_at = excluded.updated_at
	`
	_, err := l.db.Exec(q, documentHash, investigationID, StatusDone, stage, time.Now().UTC())
	if err != nil {
		return internalerrors.DatabaseError(err, "failed to mark document success")
	}
	return nil
}

// MarkFailed upserts a FAILED row and increments retry_count.
func (l *Ledger) MarkFailed(documentHash, investigationID, stage string) error {
	const q = `
	INSERT INTO document_ledger (document_hash, investigation_id, status, last_stage, retry_count, updated_at)
	VALUES (?, ?, ?, ?, 1, ?)
	ON CONFLICT(document_hash, investigation_id) DO UPDATE SET
		status = excluded.status,
		last_stage = excluded.last_stage,
		retry_count = document_ledger.retry_count + 1,
		updated_at = excluded.updated_at
	`
	_, err := l.db.Exec(q, documentHash, investigationID, StatusFailed, stage, time.Now().UTC())
	if err != nil {
		return internalerrors.DatabaseError(err, "failed to mark document failed")
	}
	return nil
}

// GetStatus returns the current entry, or nil if the document has never
// been seen under this investigation.
func (l *Ledger) GetStatus(documentHash, investigationID string) (*Entry, error) {
	const q = `
	SELECT document_hash, investigation_id, status, last_stage, retry_count, updated_at
	FROM document_ledger WHERE document_hash = ? AND investigation_id = ?
	`
	row := l.db.QueryRow(q, documentHash, investigationID)
	var e Entry
	if err := row.Scan(&e.DocumentHash, &e.InvestigationID, &e.Status, &e.LastStage, &e.RetryCount, &e.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, internalerrors.DatabaseError(err, "failed to get document status")
	}
	return &e, nil
}

// ListPending returns all documents for investigationID that are not DONE
// and have not exceeded maxRetries.
func (l *Ledger) ListPending(investigationID string, maxRetries int) ([]*Entry, error) {
	const q = `
	SELECT document_hash, investigation_id, status, last_stage, retry_count, updated_at
	FROM document_ledger
	WHERE investigation_id = ? AND status != ? AND retry_count <= ?
	ORDER BY updated_at ASC
	`
	rows, err := l.db.Query(q, investigationID, StatusDone, maxRetries)
	if err != nil {
		return nil, internalerrors.DatabaseError(err, "failed to list pending documents")
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.DocumentHash, &e.InvestigationID, &e.Status, &e.LastStage, &e.RetryCount, &e.UpdatedAt); err != nil {
			return nil, internalerrors.DatabaseError(err, "failed to scan pending document")
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, internalerrors.DatabaseError(err, "error iterating pending documents")
	}
	return out, nil
}

// IsDone is a convenience wrapper used by the ingestion stage's dedup
// check (spec §4.2 step 1).
func (l *Ledger) IsDone(documentHash, investigationID string) (bool, error) {
	e, err := l.GetStatus(documentHash, investigationID)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, nil
	}
	return e.Status == StatusDone, nil
}
