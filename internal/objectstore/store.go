// Package objectstore defines the Store interface for S3-compatible storage.
//
// This package provides the abstraction coldhome uses to keep exactly one
// verified archive per home directory in object storage. The interface is
// designed to be compatible with S3, GCS, and Azure Blob Storage; the only
// write path is a single whole-object Put carrying a Content-MD5 header so
// the store verifies integrity server-side.
//
// The primary interface is [Store]:
//
//	store, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	meta, err := store.Head(ctx, "archives/alice.tar.gz")
//	if errors.Is(err, objectstore.ErrNotFound) {
//	    // Archive never uploaded; safe to Put.
//	}
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrPreconditionFailed is returned when a conditional write fails
	// (e.g., if-none-match rejected because the object already exists).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrBadDigest is returned when the store rejects an upload because the
	// body did not match the supplied Content-MD5.
	ErrBadDigest = errors.New("content digest mismatch")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "Put", "Head", "Delete")
	Key string // Object key
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectMeta contains metadata about an object.
type ObjectMeta struct {
	// Key is the object's key (path) in the bucket.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// ContentType is the MIME type of the object.
	ContentType string

	// ETag is the entity tag. For a whole-object Put this is the hex MD5
	// of the content, quoted; for multipart uploads the format is
	// "hash-partCount" and no longer a content MD5.
	ETag string

	// LastModified is the Unix timestamp (milliseconds) when the object was last modified.
	LastModified int64

	// Metadata contains user-defined key-value metadata.
	Metadata map[string]string
}

// PutOptions configures a Put operation.
type PutOptions struct {
	// ContentMD5 is the base64-encoded MD5 of the body. When set, the
	// store verifies the uploaded bytes against it and fails the call on
	// mismatch, so a successful Put implies a correct remote copy.
	ContentMD5 string

	// Metadata is optional user-defined key-value pairs stored with the object.
	Metadata map[string]string

	// IfNoneMatch when set to "*" causes the Put to fail with
	// ErrPreconditionFailed if an object already exists at the key.
	IfNoneMatch string
}

// Store is the interface for object storage operations.
//
// All methods accept a context for cancellation and deadline propagation.
// Implementations should return wrapped errors using [ObjectError] where
// appropriate.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Put stores an object at the given key.
	//
	// The reader is consumed until EOF or error. The size parameter must
	// match the total bytes that will be read; some storage providers
	// require this upfront.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// PutWithOptions stores an object with additional options.
	//
	// opts.ContentMD5 enables server-side integrity verification;
	// opts.IfNoneMatch enables atomic create.
	PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error

	// Get retrieves an entire object.
	//
	// The caller must close the returned ReadCloser when done.
	// Returns ErrNotFound if the object does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head retrieves object metadata without the body.
	//
	// This is how the reconciliation engine learns the remote digest:
	// the ETag of a whole-object upload is the content MD5.
	// Returns ErrNotFound if the object does not exist; ErrNotFound is an
	// expected state for a never-uploaded archive, not a failure.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// Delete removes an object.
	//
	// Delete is idempotent: deleting a non-existent object succeeds
	// silently. This matches S3 behavior and enables safe retries.
	Delete(ctx context.Context, key string) error

	// List returns objects matching the given prefix, in lexicographic
	// order by key.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Close releases resources associated with the store.
	Close() error
}
