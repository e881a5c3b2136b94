// Package metrics defines the Prometheus collectors for coldhome.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Directory status label values.
const (
	StatusActive       = "active"
	StatusTooLarge     = "too_large"
	StatusWouldArchive = "would_archive"
	StatusArchived     = "archived"
	StatusFailed       = "failed"
)

// Pipeline stage label values.
const (
	StageScan      = "scan"
	StageBuild     = "build"
	StageReconcile = "reconcile"
	StageDelete    = "delete"
)

// ArchiverMetrics holds run-level metrics for the archiver pipeline.
type ArchiverMetrics struct {
	// RunsTotal counts orchestration passes.
	RunsTotal prometheus.Counter

	// DirectoriesTotal counts processed directories by final status.
	DirectoriesTotal *prometheus.CounterVec

	// InactiveBytesTotal counts bytes of inactive directories, by kind
	// (uncompressed source size vs compressed archive size).
	InactiveBytesTotal *prometheus.CounterVec

	// StageLatency tracks per-stage pipeline latency.
	StageLatency *prometheus.HistogramVec
}

// NewArchiverMetrics creates and registers archiver metrics with the
// default registry.
func NewArchiverMetrics() *ArchiverMetrics {
	return NewArchiverMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewArchiverMetricsWithRegistry creates archiver metrics registered with a
// custom registry.
func NewArchiverMetricsWithRegistry(reg prometheus.Registerer) *ArchiverMetrics {
	factory := promauto.With(reg)

	return &ArchiverMetrics{
		RunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coldhome",
				Subsystem: "archiver",
				Name:      "runs_total",
				Help:      "Total number of orchestration passes.",
			},
		),
		DirectoriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coldhome",
				Subsystem: "archiver",
				Name:      "directories_total",
				Help:      "Directories processed, broken down by final status.",
			},
			[]string{"status"},
		),
		InactiveBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coldhome",
				Subsystem: "archiver",
				Name:      "inactive_bytes_total",
				Help:      "Bytes accounted for inactive directories, by kind (uncompressed, compressed).",
			},
			[]string{"kind"},
		),
		StageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "coldhome",
				Subsystem: "archiver",
				Name:      "stage_latency_seconds",
				Help:      "Per-directory pipeline stage latency in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2.5, 12),
			},
			[]string{"stage"},
		),
	}
}
