package publish

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"larkpub/internal/utils"
)

// FailureFileName is the failed-upload ledger kept in the state directory.
const FailureFileName = "failed_uploads.json"

// FailureRecord is one task that failed and has not succeeded since. It
// carries enough context to rebuild the task without rescanning.
type FailureRecord struct {
	LocalPath   string    `json:"local_path"`
	RelPath     string    `json:"relative_path"`
	ParentToken string    `json:"parent_token,omitempty"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// FailureStore tracks failed uploads across runs, keyed by logical path.
// Recording a path that already failed overwrites the old record; a later
// success removes it. The backing file exists only while failures remain.
type FailureStore struct {
	path string

	mu      sync.Mutex
	records map[string]*FailureRecord
	dirty   bool
}

func NewFailureStore(path string) *FailureStore {
	return &FailureStore{
		path:    path,
		records: make(map[string]*FailureRecord),
	}
}

// Load reads the failure file. Missing means no pending failures; corrupt
// is discarded with a warning.
func (f *FailureStore) Load() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read failure records: %w", err)
	}

	var records []*FailureRecord
	if err := jsonUnmarshal(data, &records); err != nil {
		slog.Warn("failure records are corrupt, starting fresh", "path", f.path, "error", err)
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		if rec != nil && rec.RelPath != "" {
			f.records[rec.RelPath] = rec
		}
	}
	return nil
}

// Record stores or replaces the failure for a logical path.
func (f *FailureStore) Record(rec *FailureRecord) {
	if rec.FailedAt.IsZero() {
		rec.FailedAt = time.Now().UTC()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.RelPath] = rec
	f.dirty = true
}

// Resolve removes the failure for a logical path after it succeeds.
func (f *FailureStore) Resolve(relPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[relPath]; ok {
		delete(f.records, relPath)
		f.dirty = true
	}
}

// Records returns the pending failures sorted by logical path.
func (f *FailureStore) Records() []*FailureRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FailureRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Len returns the number of pending failures.
func (f *FailureStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// Flush persists the pending failures. When none remain the file itself is
// removed, so its presence always signals unfinished work.
func (f *FailureStore) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty {
		return nil
	}

	if len(f.records) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove failure records: %w", err)
		}
		f.dirty = false
		return nil
	}

	out := make([]*FailureRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })

	data, err := jsonMarshalIndent(out)
	if err != nil {
		return fmt.Errorf("encode failure records: %w", err)
	}
	if err := utils.EnsureParent(f.path); err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write failure records: %w", err)
	}
	f.dirty = false
	return nil
}
