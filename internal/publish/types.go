package publish

import (
	"path"
	"time"
)

// PublishDir is one discovered upload root.
type PublishDir struct {
	// Path is the directory's slash-separated path from the scan root.
	Path string
	// Prefix is the logical prefix its candidates inherit:
	// `<parent-name>/<sentinel>`, or just `<sentinel>` at the scan root.
	Prefix string
}

// FileCandidate is one file eligible for upload.
type FileCandidate struct {
	// LocalPath is the file's path on disk.
	LocalPath string
	// RelPath is the logical path. It is the identity key for history and
	// failure tracking and the blueprint for the remote folder structure,
	// preserved byte-for-byte, slash-separated.
	RelPath string
	Size    int64
	Hash    string
}

// RemoteDir is the remote folder path the candidate belongs under.
func (c *FileCandidate) RemoteDir() string {
	dir := path.Dir(c.RelPath)
	if dir == "." {
		return ""
	}
	return dir
}

// Name is the file name, the last segment of the logical path.
func (c *FileCandidate) Name() string {
	return path.Base(c.RelPath)
}

// UploadTask pairs a candidate with its resolved destination. Tasks are
// consumed exactly once; retried tasks are fresh instances rebuilt from
// persisted failure records.
type UploadTask struct {
	Candidate *FileCandidate
	// ParentToken is the resolved remote folder receiving the file.
	ParentToken string
	// ReplaceToken, when set, is an existing same-named remote file that is
	// deleted before uploading.
	ReplaceToken string
}

// RunOptions select the run mode.
type RunOptions struct {
	// Root is the directory tree to scan. Ignored for retry runs.
	Root       string
	DryRun     bool
	Concurrent bool
	Retry      bool
	Force      bool
}

// RunSummary is what a run reports back.
type RunSummary struct {
	RunID    string
	Scanned  int
	Skipped  int
	Uploaded int
	Failed   int
	Elapsed  time.Duration
	// Pending is the would-upload list of a dry run.
	Pending []*FileCandidate
}
