package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	internalerrors "github.com/sherlock-intel/engine/internal/errors"
)

// hashChunkSize is the read buffer used for chunked hashing so large
// uploads never need to be held in memory whole.
const hashChunkSize = 1 << 20 // 1MB

// hashFile computes the sha256 hex digest of path, reading in fixed-size
// chunks (spec §4.2 step 1: "sha256 chunked hash").
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", internalerrors.FileSystemError(err, "failed to open file for hashing")
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", internalerrors.FileSystemError(err, "failed to read file for hashing")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// docIDFromHash derives the document id from the first 16 hex characters
// of the content hash, per spec §3.
func docIDFromHash(hash string) string {
	if len(hash) < 16 {
		return hash
	}
	return hash[:16]
}
