package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"larkpub/internal/utils"
)

const lockFileName = ".larkpub.lock"

// ErrStateLocked means another process holds the state directory.
var ErrStateLocked = errors.New("state directory is locked by another process")

// State owns the persisted run state: the upload history, the failure
// ledger, and the advisory lock that keeps two runs from interleaving
// flushes against the same directory.
type State struct {
	dir  string
	lock *flock.Flock

	History  *HistoryStore
	Failures *FailureStore
}

// OpenState locks dir and loads both stores. The caller must Close it.
func OpenState(dir string) (*State, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock state dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrStateLocked, dir)
	}

	s := &State{
		dir:      dir,
		lock:     lock,
		History:  NewHistoryStore(filepath.Join(dir, HistoryFileName)),
		Failures: NewFailureStore(filepath.Join(dir, FailureFileName)),
	}
	if err := s.History.Load(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.Failures.Load(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Dir returns the state directory.
func (s *State) Dir() string {
	return s.dir
}

// Flush persists both stores.
func (s *State) Flush() error {
	if err := s.History.Flush(); err != nil {
		return err
	}
	return s.Failures.Flush()
}

// Close releases the lock. It does not flush.
func (s *State) Close() error {
	if !s.lock.Locked() {
		return nil
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock state dir: %w", err)
	}
	return os.Remove(s.lock.Path())
}
