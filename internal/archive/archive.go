// Package archive produces deterministic compressed archives of home
// directories into process-private staging areas.
//
// Determinism matters: the reconciliation engine compares content digests
// across runs, and a non-reproducible archive would force a re-upload every
// run even when the source data is unchanged.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Artifact is one built archive in its staging area.
//
// An Artifact is owned exclusively by the pipeline task that built it and is
// scoped to one processing attempt: Release must run on every exit path,
// success or failure.
type Artifact struct {
	// Path is the absolute path of the archive file.
	Path string

	// SizeBytes is the archive's size.
	SizeBytes int64

	// Name is the archive's file name, e.g. "alice.tar.gz".
	Name string

	mu         sync.Mutex
	stagingDir string
	released   bool
}

// Release reclaims the artifact's staging area. Idempotent.
func (a *Artifact) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil
	}
	a.released = true
	return os.RemoveAll(a.stagingDir)
}

// Builder produces an archive of a directory.
type Builder interface {
	// Build archives dirPath into a fresh staging area, excluding every
	// name in exclude at any depth. The archive file is named after the
	// directory's base name with a ".tar.gz" suffix.
	//
	// On failure no artifact is returned and the staging area has already
	// been reclaimed; the source directory is never touched.
	Build(ctx context.Context, dirPath string, exclude []string) (*Artifact, error)
}

// newStagingDir creates a process-private staging directory. Each task gets
// its own, so no two tasks ever share a staging path.
func newStagingDir() (string, error) {
	dir, err := os.MkdirTemp("", "coldhome-"+uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("archive: create staging dir: %w", err)
	}
	return dir, nil
}

// newArtifact stats the built archive and wraps it. Removes the staging dir
// on stat failure.
func newArtifact(stagingDir, path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		_ = os.RemoveAll(stagingDir)
		return nil, fmt.Errorf("archive: stat %s: %w", path, err)
	}
	return &Artifact{
		Path:       path,
		SizeBytes:  info.Size(),
		Name:       filepath.Base(path),
		stagingDir: stagingDir,
	}, nil
}
