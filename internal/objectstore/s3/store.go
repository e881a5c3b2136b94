// Package s3 implements the objectstore.Store interface using the AWS SDK
// for S3-compatible storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/coldhome-io/coldhome/internal/objectstore"
)

// Config configures an S3 store.
type Config struct {
	// Bucket is the name of the S3 bucket.
	Bucket string

	// Region is the AWS region (e.g., "us-east-1").
	// Required for AWS S3, optional for S3-compatible endpoints.
	Region string

	// Endpoint is the S3 endpoint URL (e.g., "http://localhost:9000" for MinIO).
	// If empty, uses the default AWS endpoint for the region.
	Endpoint string

	// AccessKeyID is the AWS access key ID.
	// If empty, uses the default credential chain.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	// If empty, uses the default credential chain.
	SecretAccessKey string

	// UsePathStyle enables path-style addressing (required for MinIO and
	// some S3-compatible stores).
	UsePathStyle bool
}

// Store implements objectstore.Store using AWS S3.
type Store struct {
	client *s3.Client
	bucket string
	closed bool
	mu     sync.RWMutex
}

// New creates a new S3 store with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket name is required")
	}

	opts := []func(*config.LoadOptions) error{}

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	} else {
		opts = append(opts, config.WithRegion("us-east-1"))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			// Suppress "Response has no supported checksum" warnings.
			// S3 doesn't always provide checksums for all response types,
			// which is normal and doesn't indicate a problem.
			o.DisableLogOutputChecksumValidationSkipped = true
		},
	}

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("s3: store is closed")
	}
	return nil
}

// Put stores an object at the given key.
func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.PutWithOptions(ctx, key, reader, size, contentType, objectstore.PutOptions{})
}

// PutWithOptions stores an object with additional options.
//
// When opts.ContentMD5 is set it is sent as the Content-MD5 header, so S3
// verifies the body digest server-side and rejects a corrupted upload.
func (s *Store) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts objectstore.PutOptions) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	if opts.ContentMD5 != "" {
		input.ContentMD5 = aws.String(opts.ContentMD5)
	}

	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	if opts.IfNoneMatch == "*" {
		input.IfNoneMatch = aws.String("*")
	}

	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		return s.wrapError("Put", key, err)
	}

	return nil
}

// Get retrieves an entire object.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrapError("Get", key, err)
	}

	return output.Body, nil
}

// Head retrieves object metadata without the body.
func (s *Store) Head(ctx context.Context, key string) (objectstore.ObjectMeta, error) {
	if err := s.checkClosed(); err != nil {
		return objectstore.ObjectMeta{}, err
	}

	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return objectstore.ObjectMeta{}, s.wrapError("Head", key, err)
	}

	meta := objectstore.ObjectMeta{
		Key:         key,
		Size:        aws.ToInt64(output.ContentLength),
		ContentType: aws.ToString(output.ContentType),
		ETag:        aws.ToString(output.ETag),
		Metadata:    output.Metadata,
	}

	if output.LastModified != nil {
		meta.LastModified = output.LastModified.UnixMilli()
	}

	return meta, nil
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		wrapped := s.wrapError("Delete", key, err)
		if errors.Is(wrapped, objectstore.ErrNotFound) {
			return nil
		}
		return wrapped
	}

	return nil
}

// List returns objects matching the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.ObjectMeta, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	var results []objectstore.ObjectMeta
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.wrapError("List", prefix, err)
		}

		for _, obj := range page.Contents {
			meta := objectstore.ObjectMeta{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
				ETag: aws.ToString(obj.ETag),
			}
			if obj.LastModified != nil {
				meta.LastModified = obj.LastModified.UnixMilli()
			}
			results = append(results, meta)
		}
	}

	return results, nil
}

// Close releases resources associated with the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) wrapError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	if isBadDigest(err) {
		return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrBadDigest}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrNotFound}
		case http.StatusForbidden:
			return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrAccessDenied}
		case http.StatusPreconditionFailed:
			return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrPreconditionFailed}
		}
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrBucketNotFound}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrNotFound}
	}

	return &objectstore.ObjectError{Op: op, Key: key, Err: err}
}

// isBadDigest reports whether the error is S3's BadDigest rejection of a
// Content-MD5 mismatch.
func isBadDigest(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "BadDigest"
	}
	return false
}

// Verify interface compliance at compile time.
var _ objectstore.Store = (*Store)(nil)
