package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStore_MissingFileIsEmpty(t *testing.T) {
	h := NewHistoryStore(filepath.Join(t.TempDir(), HistoryFileName))
	require.NoError(t, h.Load())
	assert.Zero(t, h.Len())
}

func TestHistoryStore_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	h := NewHistoryStore(path)
	require.NoError(t, h.Load())
	assert.Zero(t, h.Len())
}

func TestHistoryStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)

	h := NewHistoryStore(path)
	require.NoError(t, h.Load())
	h.MarkUploaded("ProjectA/00_Publish/report.txt", "hash-1")
	h.MarkUploaded("ProjectB/00_Publish/отчёт.pdf", "hash-2")
	require.NoError(t, h.Flush())

	reloaded := NewHistoryStore(path)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 2, reloaded.Len())

	entry, ok := reloaded.Get("ProjectA/00_Publish/report.txt")
	require.True(t, ok)
	assert.Equal(t, "hash-1", entry.Hash)
	assert.False(t, entry.UploadedAt.IsZero())

	entry, ok = reloaded.Get("ProjectB/00_Publish/отчёт.pdf")
	require.True(t, ok, "logical paths survive byte-for-byte")
	assert.Equal(t, "hash-2", entry.Hash)
}

func TestHistoryStore_MarkUploadedOverwrites(t *testing.T) {
	h := NewHistoryStore(filepath.Join(t.TempDir(), HistoryFileName))
	h.MarkUploaded("a", "old")
	h.MarkUploaded("a", "new")

	entry, ok := h.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", entry.Hash)
	assert.Equal(t, 1, h.Len())
}

func TestHistoryStore_FlushSkipsWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	h := NewHistoryStore(path)
	require.NoError(t, h.Load())
	require.NoError(t, h.Flush())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing changed, nothing written")
}
