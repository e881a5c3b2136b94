// Package reconcile decides whether a freshly built archive needs to be
// uploaded, is already stored correctly, or conflicts with remote state.
//
// The three-way policy is what makes the whole pipeline idempotent: running
// it any number of times against an unchanged source directory performs at
// most one upload total and converges to Skipped thereafter, while a remote
// object with a different digest is surfaced as a conflict that is never
// overwritten and never followed by deletion.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/coldhome-io/coldhome/internal/archive"
	"github.com/coldhome-io/coldhome/internal/digest"
	"github.com/coldhome-io/coldhome/internal/objectstore"
)

// Outcome is the result of reconciling one archive against its remote key.
type Outcome int

const (
	// OutcomeSkipped means the remote object already exists with the same
	// digest; no network write was performed.
	OutcomeSkipped Outcome = iota

	// OutcomeUploaded means the object was absent and the archive was
	// uploaded, with the store verifying the digest server-side.
	OutcomeUploaded

	// OutcomeConflict means the remote object exists with a different (or
	// unverifiable) digest. The object was not touched. Conflicts are
	// fatal for the directory and must never be silently resolved: they
	// indicate either a corrupted prior upload or a rename collision that
	// needs human judgement.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ConflictError reports a remote object whose digest does not match the
// local archive.
type ConflictError struct {
	Key    string
	Local  digest.Digest
	Remote digest.Digest

	// Unverifiable is set when the remote digest could not be determined
	// at all (multipart ETag); Remote is zero in that case.
	Unverifiable bool
}

func (e *ConflictError) Error() string {
	if e.Unverifiable {
		return fmt.Sprintf("reconcile: object %q exists but its digest cannot be verified (local %s)", e.Key, e.Local.Hex())
	}
	return fmt.Sprintf("reconcile: object %q digest mismatch: local %s, remote %s", e.Key, e.Local.Hex(), e.Remote.Hex())
}

// Engine reconciles local archives against remote object state.
type Engine struct {
	store objectstore.Store
}

// NewEngine creates a reconciliation engine over the given store.
func NewEngine(store objectstore.Store) *Engine {
	return &Engine{store: store}
}

// Reconcile compares the artifact's digest with the object at key and
// applies the idempotency policy:
//
//  1. Object absent: upload with a Content-MD5 header, return Uploaded.
//  2. Digests equal: return Skipped, no write.
//  3. Otherwise: return Conflict and a *ConflictError. Never overwrite.
//
// The returned digest is the artifact's local digest, valid for all
// non-error outcomes.
func (e *Engine) Reconcile(ctx context.Context, artifact *archive.Artifact, key string) (Outcome, digest.Digest, error) {
	local, err := digest.Local(artifact.Path)
	if err != nil {
		return OutcomeConflict, digest.Digest{}, err
	}

	meta, err := e.store.Head(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return e.upload(ctx, artifact, key, local)
		}
		return OutcomeConflict, local, fmt.Errorf("reconcile: head %s: %w", key, err)
	}

	remote, err := digest.FromETag(meta.ETag)
	if err != nil {
		if errors.Is(err, digest.ErrUnverifiable) {
			// An object we cannot verify is as dangerous as a mismatch:
			// equality is unproven, so deletion must not proceed.
			return OutcomeConflict, local, &ConflictError{Key: key, Local: local, Unverifiable: true}
		}
		return OutcomeConflict, local, fmt.Errorf("reconcile: object %s: %w", key, err)
	}

	if remote == local {
		return OutcomeSkipped, local, nil
	}

	return OutcomeConflict, local, &ConflictError{Key: key, Local: local, Remote: remote}
}

func (e *Engine) upload(ctx context.Context, artifact *archive.Artifact, key string, local digest.Digest) (Outcome, digest.Digest, error) {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return OutcomeConflict, local, fmt.Errorf("reconcile: open %s: %w", artifact.Path, err)
	}
	defer f.Close()

	opts := objectstore.PutOptions{ContentMD5: local.Base64()}
	if err := e.store.PutWithOptions(ctx, key, f, artifact.SizeBytes, "application/gzip", opts); err != nil {
		return OutcomeConflict, local, fmt.Errorf("reconcile: upload %s: %w", key, err)
	}

	return OutcomeUploaded, local, nil
}
