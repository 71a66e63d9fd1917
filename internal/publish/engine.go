package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"larkpub/internal/config"
	"larkpub/internal/utils"
)

// Engine runs the publish pipeline: scan, detect, resolve, upload, flush.
// Remote folder resolution is strictly serial; only uploads fan out.
type Engine struct {
	cfg   *config.Config
	drive DriveClient
	state *State
}

func NewEngine(cfg *config.Config, drive DriveClient, state *State) *Engine {
	return &Engine{cfg: cfg, drive: drive, state: state}
}

// Run executes one publish run. The summary is returned even when err is
// non-nil so callers can report partial progress; err is reserved for
// cancellation and state persistence problems, never for individual upload
// failures.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	started := time.Now()
	summary := &RunSummary{RunID: uuid.NewString()}
	slog.Info("publish run starting",
		"run_id", summary.RunID,
		"mode", runMode(opts),
		"root", opts.Root)

	var candidates []*FileCandidate
	if opts.Retry {
		retryable, unloadable := e.retryCandidates()
		summary.Scanned = len(retryable) + unloadable
		summary.Failed += unloadable
		candidates = retryable
	} else {
		result, err := e.scan(ctx, opts.Root)
		if err != nil {
			return nil, err
		}
		summary.Scanned = len(result.Candidates)

		pending, skipped := NewDetector(e.state.History, opts.Force).Filter(result.Candidates)
		summary.Skipped = skipped
		candidates = dedupe(pending)
	}

	if opts.DryRun {
		summary.Pending = candidates
		summary.Elapsed = time.Since(started)
		return summary, nil
	}

	tasks, unresolved, err := e.resolve(ctx, candidates)
	summary.Failed += unresolved
	if err != nil {
		summary.Elapsed = time.Since(started)
		return summary, e.finish(summary, err)
	}

	uploaded, failed, execErr := NewExecutor(
		e.drive, e.state.History, e.state.Failures,
		e.cfg.MaxFileSize, e.cfg.Workers,
	).Execute(ctx, tasks, opts.Concurrent)
	summary.Uploaded = uploaded
	summary.Failed += failed
	summary.Elapsed = time.Since(started)

	return summary, e.finish(summary, execErr)
}

// finish persists state exactly once at the end of a run, keeping any
// earlier error as the primary one.
func (e *Engine) finish(summary *RunSummary, runErr error) error {
	if err := e.state.Flush(); err != nil {
		if runErr != nil {
			slog.Error("state flush failed after run error", "error", err)
			return runErr
		}
		return fmt.Errorf("flush state: %w", err)
	}
	slog.Info("publish run finished",
		"run_id", summary.RunID,
		"scanned", summary.Scanned,
		"skipped", summary.Skipped,
		"uploaded", summary.Uploaded,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed.Round(time.Millisecond))
	return runErr
}

func (e *Engine) scan(ctx context.Context, root string) (*ScanResult, error) {
	ignorePath := ""
	if e.cfg.IgnoreFile != "" {
		ignorePath = filepath.Join(root, e.cfg.IgnoreFile)
	}
	rules, err := NewScanRules(e.cfg.Exclude, e.cfg.Include, ignorePath)
	if err != nil {
		return nil, err
	}
	scanner, err := NewScanner(root, e.cfg.PublishDir, rules)
	if err != nil {
		return nil, err
	}
	return scanner.Scan(ctx)
}

// retryCandidates rebuilds candidates from the persisted failure records
// instead of scanning. Records whose local file vanished or cannot be read
// are refreshed in place and stay failed.
func (e *Engine) retryCandidates() ([]*FileCandidate, int) {
	records := e.state.Failures.Records()
	slog.Info("retrying recorded failures", "count", len(records))

	candidates := make([]*FileCandidate, 0, len(records))
	unloadable := 0
	for _, rec := range records {
		info, err := os.Stat(rec.LocalPath)
		if err != nil {
			slog.Error("retry: local file unavailable", "path", rec.RelPath, "error", err)
			rec.Error = fmt.Sprintf("local file unavailable: %v", err)
			rec.FailedAt = time.Now().UTC()
			e.state.Failures.Record(rec)
			unloadable++
			continue
		}
		hash, err := utils.FileSHA256(rec.LocalPath)
		if err != nil {
			slog.Error("retry: cannot hash local file", "path", rec.RelPath, "error", err)
			rec.Error = fmt.Sprintf("hash local file: %v", err)
			rec.FailedAt = time.Now().UTC()
			e.state.Failures.Record(rec)
			unloadable++
			continue
		}
		candidates = append(candidates, &FileCandidate{
			LocalPath: rec.LocalPath,
			RelPath:   rec.RelPath,
			Size:      info.Size(),
			Hash:      hash,
		})
	}
	return candidates, unloadable
}

// resolve maps every distinct target directory to a folder token, then
// builds the upload tasks. Directories are resolved shallowest first so a
// failed ancestor poisons its whole subtree without further remote calls,
// while sibling subtrees keep resolving. Files under unresolved directories
// are recorded as failures.
func (e *Engine) resolve(ctx context.Context, candidates []*FileCandidate) ([]*UploadTask, int, error) {
	resolver := NewResolver(e.drive, e.cfg.ParentNode)

	dirSet := mapset.NewThreadUnsafeSet[string]()
	for _, c := range candidates {
		dirSet.Add(c.RemoteDir())
	}
	dirs := dirSet.ToSlice()
	sort.Strings(dirs)

	resolved := make(map[string]string, len(dirs))
	poisoned := make(map[string]error)
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, e.failUnresolved(candidates, poisoned), err
		}
		if ancestor, bad := poisonedAncestor(dir, poisoned); bad {
			poisoned[dir] = fmt.Errorf("parent folder %s unresolved", ancestor)
			continue
		}
		token, err := resolver.Resolve(ctx, dir)
		if err != nil {
			slog.Error("remote folder resolution failed", "dir", dir, "error", err)
			poisoned[dir] = err
			continue
		}
		if err := resolver.Inventory(ctx, token); err != nil {
			slog.Warn("cannot inventory remote folder, replacement disabled for it",
				"dir", dir, "error", err)
		}
		resolved[dir] = token
	}

	tasks := make([]*UploadTask, 0, len(candidates))
	failed := 0
	for _, c := range candidates {
		dir := c.RemoteDir()
		token, ok := resolved[dir]
		if !ok {
			e.state.Failures.Record(&FailureRecord{
				LocalPath: c.LocalPath,
				RelPath:   c.RelPath,
				Error:     fmt.Sprintf("resolve remote folder: %v", poisoned[dir]),
			})
			failed++
			continue
		}
		task := &UploadTask{Candidate: c, ParentToken: token}
		if existing, ok := resolver.ExistingFile(token, c.Name()); ok {
			task.ReplaceToken = existing
		}
		tasks = append(tasks, task)
	}
	return tasks, failed, nil
}

// failUnresolved records failures for candidates whose directories resolved
// to an error before cancellation. Candidates never attempted stay
// unrecorded.
func (e *Engine) failUnresolved(candidates []*FileCandidate, poisoned map[string]error) int {
	failed := 0
	for _, c := range candidates {
		err, bad := poisoned[c.RemoteDir()]
		if !bad {
			continue
		}
		e.state.Failures.Record(&FailureRecord{
			LocalPath: c.LocalPath,
			RelPath:   c.RelPath,
			Error:     fmt.Sprintf("resolve remote folder: %v", err),
		})
		failed++
	}
	return failed
}

// poisonedAncestor reports whether dir or any ancestor already failed to
// resolve.
func poisonedAncestor(dir string, poisoned map[string]error) (string, bool) {
	for failed := range poisoned {
		if dir == failed || strings.HasPrefix(dir, failed+"/") {
			return failed, true
		}
	}
	return "", false
}

// dedupe drops candidates whose logical path was already claimed, keeping
// the first occurrence. Scan order is deterministic, so the winner is
// stable across runs.
func dedupe(candidates []*FileCandidate) []*FileCandidate {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]*FileCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !seen.Add(c.RelPath) {
			slog.Warn("duplicate logical path, keeping first occurrence",
				"path", c.RelPath, "dropped", c.LocalPath)
			continue
		}
		out = append(out, c)
	}
	return out
}

func runMode(opts RunOptions) string {
	switch {
	case opts.DryRun:
		return "dry-run"
	case opts.Retry && opts.Concurrent:
		return "retry+concurrent"
	case opts.Retry:
		return "retry"
	case opts.Concurrent:
		return "concurrent"
	default:
		return "serial"
	}
}
