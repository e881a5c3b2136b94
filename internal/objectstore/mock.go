package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of the Store interface for testing.
//
// ETags are real content MD5s in the quoted-hex form S3 uses for
// whole-object uploads, and Content-MD5 verification on Put is enforced, so
// reconciliation tests exercise genuine digest comparison.
type MockStore struct {
	mu      sync.RWMutex
	objects map[string]mockObject
	puts    int

	// PutErr, when non-nil, is returned by every Put. Used to simulate
	// upload failures.
	PutErr error
}

type mockObject struct {
	data        []byte
	contentType string
	meta        ObjectMeta
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		objects: make(map[string]mockObject),
	}
}

func (s *MockStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.PutWithOptions(ctx, key, reader, size, contentType, PutOptions{})
}

func (s *MockStore) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts++

	if s.PutErr != nil {
		return &ObjectError{Op: "Put", Key: key, Err: s.PutErr}
	}

	if opts.IfNoneMatch == "*" {
		if _, exists := s.objects[key]; exists {
			return &ObjectError{Op: "Put", Key: key, Err: ErrPreconditionFailed}
		}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return &ObjectError{Op: "Put", Key: key, Err: fmt.Errorf("size mismatch: declared %d, read %d", size, len(data))}
	}

	sum := md5.Sum(data)
	if opts.ContentMD5 != "" {
		if opts.ContentMD5 != base64.StdEncoding.EncodeToString(sum[:]) {
			return &ObjectError{Op: "Put", Key: key, Err: ErrBadDigest}
		}
	}

	s.objects[key] = mockObject{
		data:        data,
		contentType: contentType,
		meta: ObjectMeta{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  contentType,
			ETag:         `"` + hex.EncodeToString(sum[:]) + `"`,
			LastModified: time.Now().UnixMilli(),
			Metadata:     opts.Metadata,
		},
	}

	return nil
}

func (s *MockStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, &ObjectError{Op: "Get", Key: key, Err: ErrNotFound}
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *MockStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return ObjectMeta{}, &ObjectError{Op: "Head", Key: key, Err: ErrNotFound}
	}

	return obj.meta, nil
}

func (s *MockStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

func (s *MockStore) List(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []ObjectMeta
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			results = append(results, obj.meta)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})

	return results, nil
}

func (s *MockStore) Close() error {
	return nil
}

// PutCalls returns how many Put operations have been attempted.
func (s *MockStore) PutCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Seed stores raw bytes directly at key, bypassing verification. For tests
// that need to pre-populate remote state.
func (s *MockStore) Seed(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := md5.Sum(data)
	s.objects[key] = mockObject{
		data: data,
		meta: ObjectMeta{
			Key:          key,
			Size:         int64(len(data)),
			ETag:         `"` + hex.EncodeToString(sum[:]) + `"`,
			LastModified: time.Now().UnixMilli(),
		},
	}
}

// Verify interface compliance at compile time.
var _ Store = (*MockStore)(nil)
