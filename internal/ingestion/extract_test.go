package ingestion

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func TestExtractPlainTextSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("confidential memo about the transaction"), 0o644))

	result := extractDocument(path)
	assert.Equal(t, state.StatusSuccess, result.Status)
	assert.Contains(t, result.Text, "confidential")
}

func TestExtractPlainTextEmptyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))

	result := extractDocument(path)
	assert.Equal(t, state.StatusFailed, result.Status)
}

func TestExtractEmailSplitsHeaderFromBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "message.eml")
	raw := "From: a@example.com\nTo: b@example.com\nSubject: test\n\nThis is the body of the message."
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	result := extractEmail(path)
	assert.Equal(t, state.StatusSuccess, result.Status)
	assert.Equal(t, "This is the body of the message.", result.Text)
}

func TestExtractDOCXReadsRunText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.docx")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="ns"><w:body><w:p><w:r><w:t>Hello investigator</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	result := extractDOCX(path)
	assert.Equal(t, state.StatusSuccess, result.Status)
	assert.Contains(t, result.Text, "Hello investigator")
}

func TestExtractDocumentUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))

	result := extractDocument(path)
	assert.Equal(t, state.StatusUnsupported, result.Status)
}
