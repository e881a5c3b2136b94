package objectstore

import (
	"errors"
	"testing"
)

func TestObjectErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *ObjectError
		expected string
	}{
		{
			name: "head not found",
			err: &ObjectError{
				Op:  "Head",
				Key: "archives/2026-spring/alice.tar.gz",
				Err: ErrNotFound,
			},
			expected: `objectstore: Head "archives/2026-spring/alice.tar.gz": object not found`,
		},
		{
			name: "put access denied",
			err: &ObjectError{
				Op:  "Put",
				Key: "archives/2026-spring/bob.tar.gz",
				Err: ErrAccessDenied,
			},
			expected: `objectstore: Put "archives/2026-spring/bob.tar.gz": access denied`,
		},
		{
			name: "put bad digest",
			err: &ObjectError{
				Op:  "Put",
				Key: "archives/carol.tar.gz",
				Err: ErrBadDigest,
			},
			expected: `objectstore: Put "archives/carol.tar.gz": content digest mismatch`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("ObjectError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestObjectErrorUnwrap(t *testing.T) {
	err := &ObjectError{
		Op:  "Head",
		Key: "test/key",
		Err: ErrNotFound,
	}

	if !errors.Is(err, ErrNotFound) {
		t.Error("ObjectError should unwrap to ErrNotFound")
	}

	if errors.Is(err, ErrAccessDenied) {
		t.Error("ObjectError should not unwrap to ErrAccessDenied")
	}
}

func TestErrorSentinels(t *testing.T) {
	// Verify all sentinel errors are distinct
	errs := []error{
		ErrNotFound,
		ErrPreconditionFailed,
		ErrBucketNotFound,
		ErrAccessDenied,
		ErrBadDigest,
	}

	for i, e1 := range errs {
		for j, e2 := range errs {
			if i != j && errors.Is(e1, e2) {
				t.Errorf("error %v should not match %v", e1, e2)
			}
		}
	}
}
