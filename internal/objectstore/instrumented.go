package objectstore

import (
	"context"
	"io"
	"time"
)

// MetricsRecorder is the interface for recording object store operation
// metrics. This keeps the objectstore package decoupled from the metrics
// package.
type MetricsRecorder interface {
	RecordPut(durationSeconds float64, success bool, bytes int64)
	RecordGet(durationSeconds float64, success bool)
	RecordHead(durationSeconds float64, success bool)
	RecordDelete(durationSeconds float64, success bool)
	RecordList(durationSeconds float64, success bool)
}

// InstrumentedStore wraps a Store and records metrics for each operation.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

// NewInstrumentedStore creates an instrumented wrapper around a Store.
// If metrics is nil, operations pass through unrecorded.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: metrics,
	}
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.PutWithOptions(ctx, key, reader, size, contentType, PutOptions{})
}

func (s *InstrumentedStore) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error {
	start := time.Now()
	err := s.store.PutWithOptions(ctx, key, reader, size, contentType, opts)
	if s.metrics != nil {
		s.metrics.RecordPut(time.Since(start).Seconds(), err == nil, size)
	}
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.store.Get(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordGet(time.Since(start).Seconds(), err == nil)
	}
	return rc, err
}

func (s *InstrumentedStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	start := time.Now()
	meta, err := s.store.Head(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordHead(time.Since(start).Seconds(), err == nil)
	}
	return meta, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordDelete(time.Since(start).Seconds(), err == nil)
	}
	return err
}

func (s *InstrumentedStore) List(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	start := time.Now()
	metas, err := s.store.List(ctx, prefix)
	if s.metrics != nil {
		s.metrics.RecordList(time.Since(start).Seconds(), err == nil)
	}
	return metas, err
}

func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

var _ Store = (*InstrumentedStore)(nil)
