package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"larkpub/internal/lark"
)

// ErrFileTooLarge marks tasks rejected by the size precheck before any
// network traffic is spent on them.
var ErrFileTooLarge = errors.New("file exceeds upload size ceiling")

// Executor attempts every task exactly once and records the outcome: a
// success updates the history and clears any standing failure, a failure
// writes a failure record. Individual failures never abort the batch.
type Executor struct {
	drive    DriveClient
	history  *HistoryStore
	failures *FailureStore
	maxSize  int64
	workers  int
}

func NewExecutor(drive DriveClient, history *HistoryStore, failures *FailureStore, maxSize int64, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		drive:    drive,
		history:  history,
		failures: failures,
		maxSize:  maxSize,
		workers:  workers,
	}
}

// Execute runs the batch serially or on the worker pool. It returns the
// uploaded and failed counts; the error is non-nil only when the context
// was cancelled, in which case unattempted tasks are counted nowhere.
func (e *Executor) Execute(ctx context.Context, tasks []*UploadTask, concurrent bool) (int, int, error) {
	if len(tasks) == 0 {
		return 0, 0, nil
	}

	var uploaded, failed atomic.Int64
	run := func(ctx context.Context, t *UploadTask) {
		if e.process(ctx, t) {
			uploaded.Add(1)
		} else {
			failed.Add(1)
		}
	}

	if !concurrent || e.workers == 1 {
		for _, t := range tasks {
			if err := ctx.Err(); err != nil {
				return int(uploaded.Load()), int(failed.Load()), err
			}
			run(ctx, t)
		}
		return int(uploaded.Load()), int(failed.Load()), nil
	}

	queue := make(chan *UploadTask, len(tasks))
	for _, t := range tasks {
		queue <- t
	}
	close(queue)

	g, gctx := errgroup.WithContext(ctx)
	for range e.workers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case t, ok := <-queue:
					if !ok {
						return nil
					}
					run(gctx, t)
				}
			}
		})
	}
	err := g.Wait()
	return int(uploaded.Load()), int(failed.Load()), err
}

// process handles one task end to end and reports whether it succeeded.
func (e *Executor) process(ctx context.Context, t *UploadTask) bool {
	c := t.Candidate

	if c.Size > e.maxSize {
		e.fail(t, fmt.Errorf("%w: %s is %s, ceiling is %s",
			ErrFileTooLarge, c.Name(),
			humanize.IBytes(uint64(c.Size)), humanize.IBytes(uint64(e.maxSize))))
		return false
	}

	// An earlier run may have left a same-named copy behind if it crashed
	// between uploading and persisting history. Remove it so re-uploads
	// replace instead of accumulate.
	if t.ReplaceToken != "" {
		if err := e.drive.DeleteFile(ctx, t.ReplaceToken); err != nil {
			e.fail(t, fmt.Errorf("replace existing remote copy: %w", err))
			return false
		}
		slog.Debug("removed stale remote copy", "path", c.RelPath, "token", t.ReplaceToken)
	}

	_, err := e.drive.UploadFile(ctx, &lark.UploadParams{
		FileName:   c.Name(),
		ParentNode: t.ParentToken,
		LocalPath:  c.LocalPath,
		Size:       c.Size,
	})
	if err != nil {
		e.fail(t, err)
		return false
	}

	e.history.MarkUploaded(c.RelPath, c.Hash)
	e.failures.Resolve(c.RelPath)
	slog.Info("uploaded", "path", c.RelPath, "size", humanize.IBytes(uint64(c.Size)))
	return true
}

func (e *Executor) fail(t *UploadTask, err error) {
	slog.Error("upload failed",
		"path", t.Candidate.RelPath,
		"reason", failureReason(err),
		"error", err)
	e.failures.Record(&FailureRecord{
		LocalPath:   t.Candidate.LocalPath,
		RelPath:     t.Candidate.RelPath,
		ParentToken: t.ParentToken,
		Error:       err.Error(),
	})
}

// failureReason buckets an error for log lines.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "size exceeded"
	case lark.IsThrottled(err):
		return "rate limited"
	case lark.IsPermissionDenied(err):
		return "permission denied"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
