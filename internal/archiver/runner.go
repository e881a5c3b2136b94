// Package archiver orchestrates the per-directory pipeline: staleness walk,
// archive build, digest reconciliation against object storage, and the
// optional notice-and-delete step.
//
// Directories are fully independent units of work. A fixed-size worker pool
// runs one complete pipeline per directory; results are folded into the run
// summary at a single collection point, in completion order.
package archiver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coldhome-io/coldhome/internal/archive"
	"github.com/coldhome-io/coldhome/internal/config"
	"github.com/coldhome-io/coldhome/internal/logging"
	"github.com/coldhome-io/coldhome/internal/metrics"
	"github.com/coldhome-io/coldhome/internal/notice"
	"github.com/coldhome-io/coldhome/internal/objectstore"
	"github.com/coldhome-io/coldhome/internal/reconcile"
	"github.com/coldhome-io/coldhome/internal/scan"
)

// Runner executes one orchestration pass over the candidate directories.
type Runner struct {
	cfg      config.ArchiverConfig
	store    objectstore.Store
	builder  archive.Builder
	engine   *reconcile.Engine
	logger   *logging.Logger
	reporter *Reporter
	metrics  *metrics.ArchiverMetrics

	// refPrefix is prepended to object keys in retrieval notices, so the
	// notice names a fully resolvable address (e.g. "s3://bucket").
	refPrefix string

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// Options configures a Runner.
type Options struct {
	Config   config.ArchiverConfig
	Store    objectstore.Store
	Builder  archive.Builder
	Logger   *logging.Logger
	Reporter *Reporter

	// Metrics is optional; nil disables metric recording.
	Metrics *metrics.ArchiverMetrics

	// RefPrefix is the address prefix for retrieval notices, e.g.
	// "s3://bucket". Empty means notices carry the bare object key.
	RefPrefix string

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:       opts.Config,
		store:     opts.Store,
		builder:   opts.Builder,
		engine:    reconcile.NewEngine(opts.Store),
		logger:    logger,
		reporter:  opts.Reporter,
		metrics:   opts.Metrics,
		refPrefix: strings.TrimSuffix(opts.RefPrefix, "/"),
		now:       now,
	}
}

// Run enumerates candidates and processes each through the pipeline on the
// worker pool. The returned error covers setup only; per-directory failures
// are reported in the Summary (and drive a non-zero exit in the caller)
// without aborting sibling tasks.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := r.logger.WithRunID(runID)

	if r.metrics != nil {
		r.metrics.RunsTotal.Inc()
	}

	candidates, err := EnumerateCandidates(r.cfg.RootDir, r.cfg.Only)
	if err != nil {
		return Summary{}, err
	}

	cutoff := r.cfg.Cutoff(r.now())
	logger.Infof("run started", map[string]any{
		"root":       r.cfg.RootDir,
		"candidates": len(candidates),
		"cutoff":     cutoff.Format(time.RFC3339),
		"workers":    r.cfg.Workers,
		"delete":     r.cfg.Delete,
		"dryRun":     r.cfg.DryRun,
	})

	tasks := make(chan Candidate)
	results := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range tasks {
				results <- r.processDir(ctx, logger, c, cutoff)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, c := range candidates {
			select {
			case tasks <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single accumulation point for the shared counters; workers never
	// touch the summary directly.
	var summary Summary
	for res := range results {
		summary.add(res)
		if r.reporter != nil {
			r.reporter.Line(res)
		}
		if r.metrics != nil {
			r.metrics.DirectoriesTotal.WithLabelValues(res.Status.String()).Inc()
			if res.Status == StatusArchived || res.Status == StatusWouldArchive {
				r.metrics.InactiveBytesTotal.WithLabelValues("uncompressed").Add(float64(res.UncompressedBytes))
				r.metrics.InactiveBytesTotal.WithLabelValues("compressed").Add(float64(res.CompressedBytes))
			}
		}
	}

	if r.reporter != nil {
		r.reporter.Summary(summary)
	}
	logger.Infof("run finished", map[string]any{
		"active":   summary.Active,
		"inactive": summary.Inactive,
		"tooLarge": summary.TooLarge,
		"failed":   summary.Failed,
	})

	return summary, ctx.Err()
}

// processDir runs the full pipeline for one directory. Every step is
// strictly sequential: archiving waits for an Inactive verdict, deletion
// waits for a verified reconciliation of this directory's own archive.
func (r *Runner) processDir(ctx context.Context, logger *logging.Logger, c Candidate, cutoff time.Time) Result {
	ignored := map[string]struct{}{r.cfg.NoticeFileName: {}}

	verdict, err := r.timedClassify(c.Path, cutoff, ignored)
	if err != nil {
		return r.failed(logger, c, StageScan, err)
	}
	if verdict.Active {
		return Result{Name: c.Name, Status: StatusActive}
	}
	if r.cfg.SizeCeilingBytes > 0 && verdict.SizeBytes >= r.cfg.SizeCeilingBytes {
		logger.Warnf("directory exceeds size ceiling, skipping archive", map[string]any{
			"dir": c.Name, "sizeBytes": verdict.SizeBytes, "ceilingBytes": r.cfg.SizeCeilingBytes,
		})
		return Result{Name: c.Name, Status: StatusTooLarge, UncompressedBytes: verdict.SizeBytes}
	}
	if r.cfg.DryRun {
		return Result{Name: c.Name, Status: StatusWouldArchive, UncompressedBytes: verdict.SizeBytes}
	}

	buildStart := r.now()
	artifact, err := r.builder.Build(ctx, c.Path, []string{r.cfg.NoticeFileName})
	if err != nil {
		return r.failed(logger, c, StageBuild, err)
	}
	defer artifact.Release()
	r.observeStage(metrics.StageBuild, buildStart)

	key := strings.TrimSuffix(r.cfg.ObjectPrefix, "/") + "/" + artifact.Name

	reconcileStart := r.now()
	outcome, dgst, err := r.engine.Reconcile(ctx, artifact, key)
	if err != nil {
		var conflict *reconcile.ConflictError
		if errors.As(err, &conflict) {
			logger.Errorf("remote archive conflicts with local build, refusing to touch it", map[string]any{
				"dir": c.Name, "key": key, "local": conflict.Local.Hex(), "remote": conflict.Remote.Hex(),
			})
		}
		return r.failed(logger, c, StageReconcile, err)
	}
	r.observeStage(metrics.StageReconcile, reconcileStart)

	logger.Debugf("archive reconciled", map[string]any{
		"dir": c.Name, "key": key, "outcome": outcome.String(), "md5": dgst.Hex(),
	})

	res := Result{
		Name:              c.Name,
		Status:            StatusArchived,
		Outcome:           outcome,
		UncompressedBytes: verdict.SizeBytes,
		CompressedBytes:   artifact.SizeBytes,
		RemoteRef:         r.remoteRef(key),
	}

	if !r.cfg.Delete {
		return res
	}

	// Deletion gate: only reachable with a Skipped or Uploaded outcome for
	// this directory's own archive. Conflicts returned above.
	deleteStart := r.now()
	writer := &notice.Writer{FileName: r.cfg.NoticeFileName}
	if err := writer.Write(c.Path, res.RemoteRef); err != nil {
		return r.failed(logger, c, StageNotice, err)
	}
	keep := map[string]struct{}{r.cfg.NoticeFileName: {}}
	if err := notice.DeleteContents(c.Path, keep); err != nil {
		return r.failed(logger, c, StageDelete, err)
	}
	r.observeStage(metrics.StageDelete, deleteStart)

	res.Deleted = true
	return res
}

func (r *Runner) timedClassify(path string, cutoff time.Time, ignored map[string]struct{}) (scan.Verdict, error) {
	start := r.now()
	verdict, err := scan.Classify(path, cutoff, ignored)
	r.observeStage(metrics.StageScan, start)
	return verdict, err
}

func (r *Runner) observeStage(stage string, start time.Time) {
	if r.metrics != nil {
		r.metrics.StageLatency.WithLabelValues(stage).Observe(r.now().Sub(start).Seconds())
	}
}

func (r *Runner) remoteRef(key string) string {
	if r.refPrefix == "" {
		return key
	}
	return r.refPrefix + "/" + key
}

func (r *Runner) failed(logger *logging.Logger, c Candidate, stage string, err error) Result {
	stageErr := &StageError{Stage: stage, Dir: c.Path, Err: err}
	logger.Errorf("directory processing failed", map[string]any{
		"dir": c.Name, "stage": stage, "error": err.Error(),
	})
	return Result{Name: c.Name, Status: StatusFailed, Err: stageErr}
}
