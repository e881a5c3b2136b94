package archive

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// TarBuilder builds archives by invoking GNU tar.
//
// Sorted member order and numeric ownership make the output reproducible
// for an unchanged source tree, which is what lets digest reconciliation
// skip re-uploads across runs.
type TarBuilder struct {
	// TarPath overrides the tar binary. Defaults to "tar" on PATH.
	TarPath string
}

func (b *TarBuilder) tar() string {
	if b.TarPath != "" {
		return b.TarPath
	}
	return "tar"
}

// Build archives dirPath with tar --sort=name --numeric-owner --gzip.
func (b *TarBuilder) Build(ctx context.Context, dirPath string, exclude []string) (*Artifact, error) {
	staging, err := newStagingDir()
	if err != nil {
		return nil, err
	}

	target := filepath.Join(staging, filepath.Base(dirPath)+".tar.gz")

	args := []string{
		"--directory=" + dirPath,
		"--sort=name",
		"--numeric-owner",
		"--create",
		"--gzip",
		"--file=" + target,
	}
	for _, name := range exclude {
		args = append(args, "--exclude="+name)
	}
	args = append(args, ".")

	cmd := exec.CommandContext(ctx, b.tar(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.RemoveAll(staging)
		return nil, fmt.Errorf("archive: %s %v failed: %w: %s", b.tar(), args, err, out)
	}

	return newArtifact(staging, target)
}

var _ Builder = (*TarBuilder)(nil)
