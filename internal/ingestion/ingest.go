// Package ingestion implements the first pipeline stage (spec §4.2):
// directory walk, per-file MIME-sniffed extraction with tiered PDF
// handling, text normalization, language detection, and ledger-tracked
// dedup/quarantine/failure bookkeeping.
//
// Grounded on internal/ingestion/orchestrator.go's errgroup-parallel
// per-item work (logging goes through internal/logging), generalized from per-repository
// clone jobs to per-document extraction jobs, and on
// original_source/agents/ingestion.py for the exact extraction algorithm.
package ingestion

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sherlock-intel/engine/internal/ledger"
	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
)

const descriptionsFileName = "descriptions.json"

// Stage runs the ingestion stage over s.UploadsPath, appending a
// state.Document per discovered file and marking s.CurrentStep on
// completion. Per-file failures never abort the stage (spec §4.2
// "Failure policy").
func Stage(ctx context.Context, s *state.InvestigationState, ldg *ledger.Ledger, quarantineDir string) error {
	cfg := s.Config
	descriptions, err := loadDescriptions(s.UploadsPath)
	if err != nil {
		logging.Warn("failed to read descriptions.json", "error", err)
	}

	entries, err := os.ReadDir(s.UploadsPath)
	if err != nil {
		return fmt.Errorf("reading uploads directory: %w", err)
	}

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentExtractions(cfg))

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == descriptionsFileName {
			continue
		}
		entry := entry
		group.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			doc := processFile(s.UploadsPath, entry.Name(), cfg, s, ldg, quarantineDir, descriptions[entry.Name()])
			if doc == nil {
				return nil
			}
			mu.Lock()
			s.Documents[doc.DocID] = doc
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil && ctx.Err() != nil {
		return err
	}

	s.CurrentStep = "ingestion_complete"
	logging.Info("ingestion stage complete", "investigation_id", s.InvestigationID, "document_count", len(s.Documents))
	return nil
}

func maxConcurrentExtractions(cfg *state.Config) int {
	if cfg == nil {
		return 4
	}
	return 4
}

// processFile runs steps 1-6 of spec §4.2 for a single file, returning
// nil when the file is rejected outright (unsupported extension, over
// size, or already-done per the ledger/state dedup check).
func processFile(uploadsPath, filename string, cfg *state.Config, s *state.InvestigationState, ldg *ledger.Ledger, quarantineDir string, description string) *state.Document {
	path := filepath.Join(uploadsPath, filename)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	info, err := os.Stat(path)
	if err != nil {
		logging.Warn("failed to stat upload", "file", filename, "error", err)
		return nil
	}

	if _, ok := cfg.SupportedExtensions[ext]; !ok {
		logging.Debug("rejecting unsupported extension", "file", filename, "extension", ext)
		return nil
	}
	if info.Size() > cfg.MaxFileSizeBytes {
		logging.Debug("rejecting oversized file", "file", filename, "size", info.Size())
		return nil
	}

	hash, err := hashFile(path)
	if err != nil {
		logging.Error("failed to hash file", "file", filename, "error", err)
		return nil
	}
	docID := docIDFromHash(hash)

	if existing, ok := s.Documents[docID]; ok && existing != nil {
		return nil
	}
	if ldg != nil {
		done, err := ldg.IsDone(hash, s.InvestigationID)
		if err == nil && done {
			return nil
		}
		if err := ldg.MarkStart(hash, s.InvestigationID); err != nil {
			logging.Warn("failed to mark ledger start", "file", filename, "error", err)
		}
	}

	start := time.Now()
	result := extractDocument(path)
	elapsed := time.Since(start)

	doc := &state.Document{
		DocID:            docID,
		Filename:         filename,
		FileType:         ext,
		FileHash:         hash,
		SizeBytes:        info.Size(),
		UploadTimestamp:  time.Now().UTC(),
		Source:           "upload",
		FilePath:         path,
		ProcessingTimeMS: elapsed.Milliseconds(),
		Metadata:         map[string]any{},
	}
	if description != "" {
		doc.Metadata["description"] = description
	}

	switch result.Status {
	case state.StatusSuccess, state.StatusPartial:
		normalized := normalizeText(result.Text)
		if len(strings.TrimSpace(normalized)) == 0 {
			quarantine(path, quarantineDir, filename)
			doc.Status = state.StatusFailed
			doc.ErrorMessage = "extraction produced no usable text"
			if ldg != nil {
				_ = ldg.MarkFailed(hash, s.InvestigationID, "ingestion")
			}
			return doc
		}
		doc.Status = result.Status
		doc.ExtractionMethod = result.ExtractionMethod
		doc.PageCount = result.PageCount
		doc.OCRConfidence = result.OCRConfidence
		doc.Language = detectLanguage(normalized)
		s.ExtractedText[docID] = normalized
		if ldg != nil {
			_ = ldg.MarkSuccess(hash, s.InvestigationID, "ingestion")
		}

	case state.StatusEncrypted:
		doc.Status = state.StatusEncrypted
		doc.ExtractionMethod = result.ExtractionMethod
		doc.ErrorMessage = result.ErrorMessage
		s.CryptographyFindings = append(s.CryptographyFindings, &state.CryptographyFinding{
			DocumentID:       docID,
			FindingType:      "pdf_encrypted",
			Confidence:       0.9,
			RequiresPassword: true,
		})
		if ldg != nil {
			_ = ldg.MarkSuccess(hash, s.InvestigationID, "ingestion")
		}

	case state.StatusUnsupported:
		doc.Status = state.StatusUnsupported
		doc.ErrorMessage = result.ErrorMessage
		if ldg != nil {
			_ = ldg.MarkSuccess(hash, s.InvestigationID, "ingestion")
		}

	default: // failed
		quarantine(path, quarantineDir, filename)
		doc.Status = state.StatusFailed
		doc.ErrorMessage = result.ErrorMessage
		if ldg != nil {
			_ = ldg.MarkFailed(hash, s.InvestigationID, "ingestion")
		}
		s.AppendError(fmt.Sprintf("ingestion failed for %s: %s", filename, result.ErrorMessage))
	}

	return doc
}

// quarantine copies the offending file into quarantineDir under a
// random-suffixed name, per spec §4.2 step 5. The original upload is
// left in place; only a quarantined copy is made.
func quarantine(path, quarantineDir, filename string) {
	if quarantineDir == "" {
		return
	}
	if err := os.MkdirAll(quarantineDir, 0o755); err != nil {
		logging.Warn("failed to create quarantine directory", "error", err)
		return
	}
	suffix := randomSuffix()
	dest := filepath.Join(quarantineDir, fmt.Sprintf("%s.%s", filename, suffix))

	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn("failed to read file for quarantine", "file", filename, "error", err)
		return
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		logging.Warn("failed to write quarantined copy", "file", filename, "error", err)
	}
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "q"
	}
	return hex.EncodeToString(b)
}

// loadDescriptions reads the optional filename->description map from
// uploadsPath/descriptions.json (spec §4.2 step 6).
func loadDescriptions(uploadsPath string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(uploadsPath, descriptionsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return map[string]string{}, err
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]string{}, err
	}
	return out, nil
}
