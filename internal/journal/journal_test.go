package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := New(filepath.Join(dir, "progress.msgpack"))

	snap := ProgressSnapshot{
		BatchID:     "batch-1",
		Exchanges:   []string{"SSE", "SZSE"},
		Total:       100,
		Processed:   50,
		Successful:  48,
		Failed:      2,
		TotalQuotes: 12000,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, j.Save(snap))

	loaded, ok, err := j.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.BatchID, loaded.BatchID)
	assert.Equal(t, snap.Total, loaded.Total)
	assert.Equal(t, snap.Processed, loaded.Processed)
	assert.Equal(t, snap.Exchanges, loaded.Exchanges)
}

func TestLoadReturnsNotOkWhenMissing(t *testing.T) {
	dir := t.TempDir()
	j := New(filepath.Join(dir, "missing.msgpack"))
	_, ok, err := j.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	j := New(filepath.Join(dir, "progress.msgpack"))
	require.NoError(t, j.Save(ProgressSnapshot{Total: 1, Processed: 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "progress.msgpack", entries[0].Name())
}

func TestAddErrorRetainsOnlyLast50(t *testing.T) {
	var snap ProgressSnapshot
	for i := 0; i < 60; i++ {
		snap.AddError("error")
	}
	assert.Len(t, snap.Errors, maxRetainedErrors)
}

func TestResumable(t *testing.T) {
	assert.False(t, Resumable(ProgressSnapshot{}, false))
	assert.False(t, Resumable(ProgressSnapshot{Total: 0, Processed: 0}, true))
	assert.True(t, Resumable(ProgressSnapshot{Total: 10, Processed: 1}, true))
}
