package publish

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"larkpub/internal/utils"
)

// Scanner discovers publish directories under a root and collects their
// candidate files. It walks lexically, never follows symlinks, and treats
// unreadable entries as warnings rather than failures.
type Scanner struct {
	fsys     fs.FS
	rootAbs  string
	sentinel string
	rules    *ScanRules
}

// ScanResult is everything one walk produced.
type ScanResult struct {
	Dirs       []*PublishDir
	Candidates []*FileCandidate
	// Warnings counts entries skipped because they could not be read.
	Warnings int
}

// NewScanner walks the directory tree rooted at root on the local
// filesystem.
func NewScanner(root, sentinel string, rules *ScanRules) (*Scanner, error) {
	abs, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	if !utils.DirExists(abs) {
		return nil, fmt.Errorf("scan root %s: %w", abs, fs.ErrNotExist)
	}
	s := NewScannerFS(os.DirFS(abs), sentinel, rules)
	s.rootAbs = abs
	return s, nil
}

// NewScannerFS walks an injected filesystem. Candidate local paths stay
// relative to the filesystem root.
func NewScannerFS(fsys fs.FS, sentinel string, rules *ScanRules) *Scanner {
	return &Scanner{fsys: fsys, sentinel: sentinel, rules: rules}
}

// Scan walks the tree once. Only context cancellation aborts it; everything
// else is skipped with a warning.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	res := &ScanResult{}
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			slog.Warn("scan: skipping unreadable entry", "path", p, "error", walkErr)
			res.Warnings++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == "." || !d.IsDir() {
			return nil
		}
		if s.rules.ExcludeDir(p) {
			slog.Debug("scan: excluded directory", "dir", p)
			return fs.SkipDir
		}
		if d.Name() != s.sentinel {
			return nil
		}
		if !s.rules.AcceptRoot(p) {
			slog.Debug("scan: publish directory outside include set", "dir", p)
			return fs.SkipDir
		}
		pd := &PublishDir{Path: p, Prefix: logicalPrefix(p, s.sentinel)}
		res.Dirs = append(res.Dirs, pd)
		if err := s.collect(ctx, pd, res); err != nil {
			return err
		}
		return fs.SkipDir
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("scan finished",
		"publish_dirs", len(res.Dirs),
		"candidates", len(res.Candidates),
		"warnings", res.Warnings)
	return res, nil
}

// collect gathers every regular file beneath one publish directory. Only
// context cancellation surfaces as an error.
func (s *Scanner) collect(ctx context.Context, pd *PublishDir, res *ScanResult) error {
	return fs.WalkDir(s.fsys, pd.Path, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			slog.Warn("scan: skipping unreadable entry", "path", p, "error", walkErr)
			res.Warnings++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			slog.Debug("scan: skipping non-regular file", "path", p)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			slog.Warn("scan: cannot stat file", "path", p, "error", err)
			res.Warnings++
			return nil
		}
		hash, err := utils.FileSHA256FS(s.fsys, p)
		if err != nil {
			slog.Warn("scan: cannot hash file", "path", p, "error", err)
			res.Warnings++
			return nil
		}
		inner := strings.TrimPrefix(p, pd.Path+"/")
		res.Candidates = append(res.Candidates, &FileCandidate{
			LocalPath: s.localPath(p),
			RelPath:   pd.Prefix + "/" + inner,
			Size:      info.Size(),
			Hash:      hash,
		})
		return nil
	})
}

func (s *Scanner) localPath(p string) string {
	if s.rootAbs == "" {
		return p
	}
	return filepath.Join(s.rootAbs, filepath.FromSlash(p))
}

// logicalPrefix derives the stable prefix for files under a publish
// directory: the publish directory's parent name joined with the sentinel.
// A publish directory sitting directly in the scan root has no parent
// segment and contributes the sentinel alone.
func logicalPrefix(publishPath, sentinel string) string {
	parent := path.Dir(publishPath)
	if parent == "." {
		return sentinel
	}
	return path.Base(parent) + "/" + sentinel
}
