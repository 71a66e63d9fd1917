package publish

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"larkpub/internal/utils"
)

// HistoryFileName is the upload history file kept in the state directory.
const HistoryFileName = ".upload_history.json"

// HistoryEntry records one successful upload.
type HistoryEntry struct {
	Hash       string    `json:"hash"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// HistoryStore is the on-disk record of what has been uploaded, keyed by
// logical path. Mutations are mutex-guarded in memory; Flush persists them
// once at the end of a run.
type HistoryStore struct {
	path string

	mu      sync.Mutex
	entries map[string]HistoryEntry
	dirty   bool
}

func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{
		path:    path,
		entries: make(map[string]HistoryEntry),
	}
}

// Load reads the history file. A missing file is an empty history; a
// corrupt one is discarded with a warning so affected files simply
// re-upload.
func (h *HistoryStore) Load() error {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read upload history: %w", err)
	}

	var entries map[string]HistoryEntry
	if err := jsonUnmarshal(data, &entries); err != nil {
		slog.Warn("upload history is corrupt, starting fresh", "path", h.path, "error", err)
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = entries
	if h.entries == nil {
		h.entries = make(map[string]HistoryEntry)
	}
	return nil
}

// Get returns the entry for a logical path.
func (h *HistoryStore) Get(relPath string) (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.entries[relPath]
	return entry, ok
}

// MarkUploaded records a successful upload of the given content hash.
func (h *HistoryStore) MarkUploaded(relPath, hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[relPath] = HistoryEntry{Hash: hash, UploadedAt: time.Now().UTC()}
	h.dirty = true
}

// Len returns the number of recorded uploads.
func (h *HistoryStore) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Flush writes the history back to disk if anything changed.
func (h *HistoryStore) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return nil
	}

	data, err := jsonMarshalIndent(h.entries)
	if err != nil {
		return fmt.Errorf("encode upload history: %w", err)
	}
	if err := utils.EnsureParent(h.path); err != nil {
		return err
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("write upload history: %w", err)
	}
	h.dirty = false
	return nil
}
