package archiver

import (
	"fmt"

	"github.com/coldhome-io/coldhome/internal/reconcile"
)

// Status is the final classification of one directory's processing.
type Status int

const (
	// StatusActive means the directory had recent activity and was left alone.
	StatusActive Status = iota

	// StatusTooLarge means the directory was inactive but exceeded the
	// size ceiling, so archiving was skipped. A capacity guard outcome,
	// distinct from both active and archived.
	StatusTooLarge

	// StatusWouldArchive means the directory was inactive and would have
	// been archived, but the run was a dry run.
	StatusWouldArchive

	// StatusArchived means the pipeline ran to a verified reconciliation
	// (and, when requested, deletion).
	StatusArchived

	// StatusFailed means a pipeline stage failed; the directory was left
	// untouched beyond whatever the failed stage had already read.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusTooLarge:
		return "too_large"
	case StatusWouldArchive:
		return "would_archive"
	case StatusArchived:
		return "archived"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline stage names for failure reporting.
const (
	StageScan      = "scan"
	StageBuild     = "build"
	StageReconcile = "reconcile"
	StageNotice    = "notice"
	StageDelete    = "delete"
)

// StageError reports which pipeline stage aborted a directory's processing.
type StageError struct {
	Stage string
	Dir   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("archiver: %s stage failed for %s: %v", e.Stage, e.Dir, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is the per-directory processing summary.
type Result struct {
	// Name is the directory's display name (its base name under the root).
	Name string

	// Status is the final classification.
	Status Status

	// Outcome is the reconciliation outcome; valid only when Status is
	// StatusArchived.
	Outcome reconcile.Outcome

	// Deleted reports that the notice was written and the contents removed.
	Deleted bool

	// UncompressedBytes is the tree's size; zero when active (the walk
	// short-circuits before computing it).
	UncompressedBytes int64

	// CompressedBytes is the archive's size; zero unless an archive was built.
	CompressedBytes int64

	// RemoteRef is the archive's remote address; set when an archive was
	// reconciled.
	RemoteRef string

	// Err is the failure, when Status is StatusFailed.
	Err error
}

// Summary aggregates one run's results.
type Summary struct {
	Active            int
	Inactive          int
	TooLarge          int
	Failed            int
	UncompressedBytes int64
	CompressedBytes   int64
}

// add folds one result into the summary. Called from the single collection
// point only, never concurrently.
func (s *Summary) add(r Result) {
	switch r.Status {
	case StatusActive:
		s.Active++
	case StatusTooLarge:
		s.TooLarge++
	case StatusWouldArchive, StatusArchived:
		s.Inactive++
		s.UncompressedBytes += r.UncompressedBytes
		s.CompressedBytes += r.CompressedBytes
	case StatusFailed:
		s.Failed++
	}
}
