package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ObjectStoreMetrics holds metrics for object store operations. It
// implements objectstore.MetricsRecorder for the instrumented store.
type ObjectStoreMetrics struct {
	// LatencyHistogram tracks operation latencies.
	// Labels: operation (put, get, head, delete, list), status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal tracks total operations by operation and status.
	RequestsTotal *prometheus.CounterVec

	// BytesUploadedTotal tracks total bytes written to the store.
	BytesUploadedTotal prometheus.Counter
}

// Object store operation label values.
const (
	OpObjPut    = "put"
	OpObjGet    = "get"
	OpObjHead   = "head"
	OpObjDelete = "delete"
	OpObjList   = "list"
)

// DefaultObjectStoreLatencyBuckets are latency buckets for object store
// operations. Uploads of multi-gigabyte archives sit at the far end.
var DefaultObjectStoreLatencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0, 900.0,
}

// NewObjectStoreMetrics creates and registers object store metrics with the
// default registry.
func NewObjectStoreMetrics() *ObjectStoreMetrics {
	return NewObjectStoreMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewObjectStoreMetricsWithRegistry creates object store metrics registered
// with a custom registry. Useful for tests to avoid conflicts with the
// default registry.
func NewObjectStoreMetricsWithRegistry(reg prometheus.Registerer) *ObjectStoreMetrics {
	factory := promauto.With(reg)

	return &ObjectStoreMetrics{
		LatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "coldhome",
				Subsystem: "objectstore",
				Name:      "operation_latency_seconds",
				Help:      "Object store operation latency in seconds, broken down by operation and status.",
				Buckets:   DefaultObjectStoreLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coldhome",
				Subsystem: "objectstore",
				Name:      "operations_total",
				Help:      "Total number of object store operations, broken down by operation and status.",
			},
			[]string{"operation", "status"},
		),
		BytesUploadedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coldhome",
				Subsystem: "objectstore",
				Name:      "bytes_uploaded_total",
				Help:      "Total bytes uploaded to the object store.",
			},
		),
	}
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *ObjectStoreMetrics) record(op string, durationSeconds float64, success bool) {
	status := statusLabel(success)
	m.LatencyHistogram.WithLabelValues(op, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(op, status).Inc()
}

// RecordPut records a Put operation.
func (m *ObjectStoreMetrics) RecordPut(durationSeconds float64, success bool, bytes int64) {
	m.record(OpObjPut, durationSeconds, success)
	if success {
		m.BytesUploadedTotal.Add(float64(bytes))
	}
}

// RecordGet records a Get operation.
func (m *ObjectStoreMetrics) RecordGet(durationSeconds float64, success bool) {
	m.record(OpObjGet, durationSeconds, success)
}

// RecordHead records a Head operation.
func (m *ObjectStoreMetrics) RecordHead(durationSeconds float64, success bool) {
	m.record(OpObjHead, durationSeconds, success)
}

// RecordDelete records a Delete operation.
func (m *ObjectStoreMetrics) RecordDelete(durationSeconds float64, success bool) {
	m.record(OpObjDelete, durationSeconds, success)
}

// RecordList records a List operation.
func (m *ObjectStoreMetrics) RecordList(durationSeconds float64, success bool) {
	m.record(OpObjList, durationSeconds, success)
}
