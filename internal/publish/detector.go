package publish

import "log/slog"

// Detector decides which candidates actually need uploading by comparing
// content hashes against the upload history.
type Detector struct {
	history *HistoryStore
	force   bool
}

func NewDetector(history *HistoryStore, force bool) *Detector {
	return &Detector{history: history, force: force}
}

// NeedsUpload reports whether the candidate's content differs from what the
// history last recorded for its logical path. Force mode uploads
// unconditionally.
func (d *Detector) NeedsUpload(c *FileCandidate) bool {
	if d.force {
		return true
	}
	entry, ok := d.history.Get(c.RelPath)
	return !ok || entry.Hash != c.Hash
}

// Filter splits candidates into those needing upload and a count of
// unchanged ones, preserving scan order.
func (d *Detector) Filter(candidates []*FileCandidate) ([]*FileCandidate, int) {
	pending := make([]*FileCandidate, 0, len(candidates))
	skipped := 0
	for _, c := range candidates {
		if !d.NeedsUpload(c) {
			slog.Debug("skipping unchanged file", "path", c.RelPath)
			skipped++
			continue
		}
		pending = append(pending, c)
	}
	return pending, skipped
}
