package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestArchiverMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewArchiverMetricsWithRegistry(reg)

	m.RunsTotal.Inc()
	m.DirectoriesTotal.WithLabelValues(StatusArchived).Inc()
	m.DirectoriesTotal.WithLabelValues(StatusArchived).Inc()
	m.DirectoriesTotal.WithLabelValues(StatusActive).Inc()
	m.InactiveBytesTotal.WithLabelValues("uncompressed").Add(1000)
	m.StageLatency.WithLabelValues(StageScan).Observe(0.02)

	require.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal))
	require.Equal(t, 2.0, testutil.ToFloat64(m.DirectoriesTotal.WithLabelValues(StatusArchived)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DirectoriesTotal.WithLabelValues(StatusActive)))
	require.Equal(t, 1000.0, testutil.ToFloat64(m.InactiveBytesTotal.WithLabelValues("uncompressed")))
}

func TestObjectStoreMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewObjectStoreMetricsWithRegistry(reg)

	m.RecordPut(1.5, true, 4096)
	m.RecordPut(0.1, false, 4096)
	m.RecordHead(0.05, true)

	require.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(OpObjPut, "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(OpObjPut, "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(OpObjHead, "success")))
	require.Equal(t, 4096.0, testutil.ToFloat64(m.BytesUploadedTotal), "failed uploads must not count bytes")
}

func TestMetricsRegisterTwiceWithSeparateRegistries(t *testing.T) {
	// Separate registries allow independent instances, as tests need.
	m1 := NewArchiverMetricsWithRegistry(prometheus.NewRegistry())
	m2 := NewArchiverMetricsWithRegistry(prometheus.NewRegistry())
	require.NotNil(t, m1)
	require.NotNil(t, m2)
}
