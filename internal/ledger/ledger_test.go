package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestMarkStartThenSuccess(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.MarkStart("hash1", "inv1"))
	entry, err := l.GetStatus("hash1", "inv1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StatusProcessing, entry.Status)

	require.NoError(t, l.MarkSuccess("hash1", "inv1", "ingestion"))
	entry, err = l.GetStatus("hash1", "inv1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, entry.Status)

	done, err := l.IsDone("hash1", "inv1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestMarkFailedIncrementsRetryCount(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.MarkFailed("hash2", "inv1", "ingestion"))
	require.NoError(t, l.MarkFailed("hash2", "inv1", "ingestion"))

	entry, err := l.GetStatus("hash2", "inv1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, 2, entry.RetryCount)
}

func TestListPendingExcludesDoneAndOverRetried(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.MarkStart("hash-pending", "inv1"))
	require.NoError(t, l.MarkSuccess("hash-done", "inv1", "ingestion"))
	require.NoError(t, l.MarkFailed("hash-over-retried", "inv1", "ingestion"))
	require.NoError(t, l.MarkFailed("hash-over-retried", "inv1", "ingestion"))

	pending, err := l.ListPending("inv1", 1)
	require.NoError(t, err)

	hashes := make([]string, 0, len(pending))
	for _, e := range pending {
		hashes = append(hashes, e.DocumentHash)
	}
	assert.Contains(t, hashes, "hash-pending")
	assert.NotContains(t, hashes, "hash-done")
	assert.NotContains(t, hashes, "hash-over-retried")
}

func TestGetStatusUnknownDocumentReturnsNil(t *testing.T) {
	l := openTestLedger(t)

	entry, err := l.GetStatus("nonexistent", "inv1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestScopedPerInvestigation(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.MarkSuccess("shared-hash", "inv-a", "ingestion"))

	done, err := l.IsDone("shared-hash", "inv-b")
	require.NoError(t, err)
	assert.False(t, done, "ledger status must be scoped per investigation")
}
