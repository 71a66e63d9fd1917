package publish

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Sibling directory categories that never publish. Callers can replace
// these via configuration; an ignore file in the scan root appends to them.
var defaultExcludeLines = []string{
	"*_List Report",
	"*_Shared info",
	"*_Deleted*",
}

// ScanRules decide which directories the scanner descends into and which
// publish roots it accepts.
type ScanRules struct {
	exclude  *gitignore.GitIgnore
	includes []string
}

// NewScanRules compiles exclusion lines and include globs. Empty excludes
// fall back to the defaults; empty includes accept every publish root.
// When ignorePath names an existing file its lines are appended to the
// exclusions.
func NewScanRules(excludes, includes []string, ignorePath string) (*ScanRules, error) {
	lines := excludes
	if len(lines) == 0 {
		lines = defaultExcludeLines
	}
	if ignorePath != "" {
		extra, err := readIgnoreLines(ignorePath)
		if err != nil {
			return nil, err
		}
		lines = append(append([]string{}, lines...), extra...)
	}

	for _, pattern := range includes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}

	return &ScanRules{
		exclude:  gitignore.CompileIgnoreLines(lines...),
		includes: includes,
	}, nil
}

func readIgnoreLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}
	slog.Debug("loaded ignore file", "path", path)
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ExcludeDir reports whether the directory at relPath is pruned from the
// walk. Matching is per path segment, so an excluded ancestor shadows
// everything beneath it.
func (r *ScanRules) ExcludeDir(relPath string) bool {
	return r.exclude.MatchesPath(relPath)
}

// AcceptRoot reports whether a discovered publish root passes the include
// globs. Globs match against the publish directory's path from the scan
// root.
func (r *ScanRules) AcceptRoot(relPath string) bool {
	if len(r.includes) == 0 {
		return true
	}
	for _, pattern := range r.includes {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}
