package reconciler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hetulpatel/chroma-auditor/internal/logging"
)

// minSegmentNameLen is the shortest directory name treated as a segment id.
const minSegmentNameLen = 32

// LooksLikeSegment reports whether a directory name could be a segment id:
// at least 32 characters and containing a hyphen. This is a shape heuristic,
// not UUID validation. An unrelated directory of that shape placed under the
// storage root will be classified as an orphan.
func LooksLikeSegment(name string) bool {
	return len(name) >= minSegmentNameLen && strings.Contains(name, "-")
}

// CandidateDirectories lists the immediate subdirectories of the root whose
// names pass LooksLikeSegment, sorted.
func (r *Reconciler) CandidateDirectories() ([]string, error) {
	entries, err := os.ReadDir(r.root.Path())
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || !LooksLikeSegment(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Report is one reconciliation snapshot.
type Report struct {
	// Live is the index mapping in query order.
	Live []LiveSegment
	// Orphans are candidate directories absent from Live, sorted.
	Orphans []string
	// Degraded is set when the index could not be read and Live is empty
	// because nothing is known, not because nothing is live.
	Degraded bool
	IndexErr error
}

// ComputeOrphans diffs the candidate directories against the live mapping.
// The two reads are not taken atomically; a collection created between them
// can show up as an orphan in this report.
func (r *Reconciler) ComputeOrphans(ctx context.Context) (Report, error) {
	var report Report
	live, err := r.LiveMapping(ctx)
	if err != nil {
		if !errors.Is(err, ErrIndexUnavailable) {
			return Report{}, err
		}
		logging.Errorf("[reconciler] %v; assuming no live collections", err)
		report.Degraded = true
		report.IndexErr = err
		live = nil
	}
	report.Live = live

	dirs, err := r.CandidateDirectories()
	if err != nil {
		return Report{}, err
	}

	liveIDs := make(map[string]struct{}, len(live))
	for _, seg := range live {
		liveIDs[seg.SegmentID] = struct{}{}
	}
	for _, d := range dirs {
		if _, ok := liveIDs[d]; !ok {
			report.Orphans = append(report.Orphans, d)
		}
	}
	logging.Debugf("[reconciler] %d live segments, %d candidates, %d orphans", len(live), len(dirs), len(report.Orphans))
	return report, nil
}

// SweepResult is the outcome of one DeleteOrphans pass.
type SweepResult struct {
	Deleted  []string
	Failed   []DirectoryError
	Degraded bool
}

// Count returns the number of directories removed.
func (s SweepResult) Count() int {
	return len(s.Deleted)
}

// DeleteOrphans recomputes the orphan set and removes each directory
// recursively. A failure on one directory is logged, recorded in Failed, and
// the sweep moves on. When the index is unreadable nothing is deleted, since
// every directory would look orphaned.
func (r *Reconciler) DeleteOrphans(ctx context.Context) (SweepResult, error) {
	report, err := r.ComputeOrphans(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	if report.Degraded {
		logging.Errorf("[reconciler] refusing orphan sweep of %s: %v", r.root.Path(), report.IndexErr)
		return SweepResult{Degraded: true}, nil
	}

	var res SweepResult
	for _, name := range report.Orphans {
		if err := r.removeAll(r.root.SegmentPath(name)); err != nil {
			logging.Errorf("[reconciler] remove orphan %s: %v", name, err)
			res.Failed = append(res.Failed, DirectoryError{Name: name, Err: err})
			continue
		}
		logging.Infof("[reconciler] removed orphan directory %s", name)
		res.Deleted = append(res.Deleted, name)
	}
	return res, nil
}
