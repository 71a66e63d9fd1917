package publish

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larkpub/internal/config"
)

func newTestEngine(t *testing.T, drive DriveClient) (*Engine, *State) {
	t.Helper()
	cfg := &config.Config{
		AppID:      "app",
		AppSecret:  "secret",
		ParentNode: "root",
		StateDir:   t.TempDir(),
	}
	require.NoError(t, cfg.Validate())

	state, err := OpenState(cfg.StateDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })

	return NewEngine(cfg, drive, state), state
}

func childToken(t *testing.T, drive *fakeDrive, parent, name string) string {
	t.Helper()
	drive.mu.Lock()
	defer drive.mu.Unlock()
	for _, item := range drive.children[parent] {
		if item.Name == name {
			return item.Token
		}
	}
	t.Fatalf("no child %q under %s", name, parent)
	return ""
}

func TestEngine_FirstRunUploadsEverything(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root, map[string]string{
		"ProjectA/00_Publish/report.txt":           "alpha",
		"ProjectA/00_Publish/data/raw.csv":         "1,2,3",
		"ProjectA/01_List Report/00_Publish/x.txt": "hidden",
	})
	drive := newFakeDrive("root")
	eng, state := newTestEngine(t, drive)

	sum, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scanned)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, 2, sum.Uploaded)
	assert.Equal(t, 0, sum.Failed)
	assert.NotEmpty(t, sum.RunID)

	// Remote hierarchy mirrors the logical paths.
	projectA := childToken(t, drive, "root", "ProjectA")
	publish := childToken(t, drive, projectA, "00_Publish")
	assert.Contains(t, drive.names(publish), "report.txt")
	data := childToken(t, drive, publish, "data")
	assert.Equal(t, []string{"raw.csv"}, drive.names(data))

	// State persisted: history on disk, no failure ledger.
	_, err = os.Stat(filepath.Join(state.Dir(), HistoryFileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(state.Dir(), FailureFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestEngine_SecondRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root, map[string]string{
		"ProjectA/00_Publish/report.txt":   "alpha",
		"ProjectA/00_Publish/data/raw.csv": "1,2,3",
	})
	drive := newFakeDrive("root")
	eng, _ := newTestEngine(t, drive)

	_, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)
	uploadsAfterFirst := len(drive.uploads)

	sum, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scanned)
	assert.Equal(t, 2, sum.Skipped)
	assert.Zero(t, sum.Uploaded)
	assert.Equal(t, uploadsAfterFirst, len(drive.uploads), "unchanged files cost no uploads")
}

func TestEngine_ChangedFileReuploadsAndReplaces(t *testing.T) {
	root := t.TempDir()
	paths := seedTree(t, root, map[string]string{
		"ProjectA/00_Publish/report.txt":   "alpha",
		"ProjectA/00_Publish/data/raw.csv": "1,2,3",
	})
	drive := newFakeDrive("root")
	eng, _ := newTestEngine(t, drive)

	_, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(paths["ProjectA/00_Publish/report.txt"], []byte("alphA"), 0o644))

	sum, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Uploaded, "a one-byte change re-uploads exactly that file")
	assert.Equal(t, 1, sum.Skipped)

	projectA := childToken(t, drive, "root", "ProjectA")
	publish := childToken(t, drive, projectA, "00_Publish")
	count := 0
	for _, name := range drive.names(publish) {
		if name == "report.txt" {
			count++
		}
	}
	assert.Equal(t, 1, count, "replacement leaves a single remote copy")
	assert.Equal(t, 1, drive.deletes)
}

func TestEngine_ForceReuploadsUnchanged(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root, map[string]string{
		"ProjectA/00_Publish/report.txt": "alpha",
	})
	drive := newFakeDrive("root")
	eng, _ := newTestEngine(t, drive)

	_, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)

	sum, err := eng.Run(t.Context(), RunOptions{Root: root, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Uploaded)
	assert.Zero(t, sum.Skipped)
}

func TestEngine_DryRunHasNoSideEffects(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root, map[string]string{
		"ProjectA/00_Publish/report.txt":   "alpha",
		"ProjectB/00_Publish/отчёт.pdf":    "beta",
		"ProjectB/02_Shared info/skip.txt": "never",
	})
	drive := newFakeDrive("root")
	eng, state := newTestEngine(t, drive)

	sum, err := eng.Run(t.Context(), RunOptions{Root: root, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scanned)
	require.Len(t, sum.Pending, 2)
	assert.Equal(t, "ProjectA/00_Publish/report.txt", sum.Pending[0].RelPath)
	assert.Equal(t, "ProjectB/00_Publish/отчёт.pdf", sum.Pending[1].RelPath)

	assert.Zero(t, drive.callCount(), "dry runs never touch the remote")
	_, err = os.Stat(filepath.Join(state.Dir(), HistoryFileName))
	assert.True(t, os.IsNotExist(err), "dry runs never touch state")
}

func TestEngine_FailureThenRetry(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root, map[string]string{
		"ProjectA/00_Publish/good.txt": "fine",
		"ProjectA/00_Publish/bad.txt":  "broken",
	})
	drive := newFakeDrive("root")
	drive.failUpload["bad.txt"] = errors.New("boom")
	eng, state := newTestEngine(t, drive)

	sum, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err, "upload failures are reported in the summary, not as errors")
	assert.Equal(t, 1, sum.Uploaded)
	assert.Equal(t, 1, sum.Failed)

	failurePath := filepath.Join(state.Dir(), FailureFileName)
	_, err = os.Stat(failurePath)
	require.NoError(t, err, "failures persist across runs")

	// The blocker is gone; retry feeds from the ledger, not a rescan.
	drive.mu.Lock()
	delete(drive.failUpload, "bad.txt")
	drive.mu.Unlock()

	retrySum, err := eng.Run(t.Context(), RunOptions{Retry: true})
	require.NoError(t, err)
	assert.Equal(t, 1, retrySum.Scanned, "retry considers only recorded failures")
	assert.Equal(t, 1, retrySum.Uploaded)
	assert.Zero(t, retrySum.Failed)

	_, err = os.Stat(failurePath)
	assert.True(t, os.IsNotExist(err), "ledger disappears once everything succeeded")

	_, ok := state.History.Get("ProjectA/00_Publish/bad.txt")
	assert.True(t, ok, "retried uploads enter the history")
}

func TestEngine_RetryWithVanishedLocalFile(t *testing.T) {
	drive := newFakeDrive("root")
	eng, state := newTestEngine(t, drive)

	state.Failures.Record(&FailureRecord{
		LocalPath: filepath.Join(t.TempDir(), "gone.txt"),
		RelPath:   "ProjectA/00_Publish/gone.txt",
		Error:     "boom",
	})

	sum, err := eng.Run(t.Context(), RunOptions{Retry: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Scanned)
	assert.Zero(t, sum.Uploaded)
	assert.Equal(t, 1, sum.Failed)

	recs := state.Failures.Records()
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Error, "local file unavailable")
}

func TestEngine_ResolutionFailurePoisonsSubtreeOnly(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root, map[string]string{
		"ProjectA/00_Publish/report.txt":   "alpha",
		"ProjectA/00_Publish/data/raw.csv": "1,2,3",
		"ProjectB/00_Publish/fine.txt":     "beta",
	})
	drive := newFakeDrive("root")
	drive.failCreate["root/ProjectA"] = errors.New("no permission")
	eng, state := newTestEngine(t, drive)

	sum, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Uploaded, "sibling subtree still publishes")
	assert.Equal(t, 2, sum.Failed, "both files under the unresolved folder fail")

	assert.Equal(t, 3, drive.creates,
		"the poisoned subtree is never re-attempted: one failed create plus two for the sibling")

	recs := state.Failures.Records()
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Contains(t, rec.Error, "resolve remote folder")
	}
}

func TestEngine_DuplicateLogicalPathsKeepFirst(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root, map[string]string{
		"X/A/00_Publish/f.txt": "from X",
		"Y/A/00_Publish/f.txt": "from Y",
	})
	drive := newFakeDrive("root")
	eng, _ := newTestEngine(t, drive)

	sum, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scanned)
	assert.Equal(t, 1, sum.Uploaded, "colliding logical paths dispatch once")

	require.Len(t, drive.uploads, 1)
	assert.Contains(t, drive.uploads[0].LocalPath, string(filepath.Separator)+"X"+string(filepath.Separator),
		"deterministic walk order keeps the first occurrence")
}

func TestEngine_CrashLeftoverIsReplacedNotDuplicated(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root, map[string]string{
		"ProjectA/00_Publish/report.txt": "alpha",
	})

	// A previous run uploaded the file but died before persisting history.
	drive := newFakeDrive("root")
	projectA := drive.addFolder("root", "ProjectA")
	publish := drive.addFolder(projectA, "00_Publish")
	drive.addFile(publish, "report.txt")

	eng, _ := newTestEngine(t, drive)
	sum, err := eng.Run(t.Context(), RunOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Uploaded)

	assert.Equal(t, []string{"report.txt"}, drive.names(publish),
		"re-upload replaces the leftover instead of adding a twin")
	assert.Equal(t, 1, drive.deletes)
}
