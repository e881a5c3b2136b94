package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// GzipBuilder builds tar.gz archives in-process, without an external tar
// binary. Used where tar is unavailable, and by tests.
//
// Output is deterministic for an unchanged source tree: members are written
// in lexicographic walk order, ownership names are cleared (numeric ids
// only), timestamps are truncated to seconds with access/change times
// dropped, and the gzip header carries no name or mtime.
type GzipBuilder struct {
	// Level is the gzip compression level. Zero means gzip.DefaultCompression.
	Level int
}

// Build archives dirPath, excluding every name in exclude at any depth.
//
// Regular files, directories, and symlinks are archived; other special
// files are skipped. Note the walker and this builder see the tree
// differently on purpose: symlinks never count toward staleness but are
// still preserved in the archive.
func (b *GzipBuilder) Build(ctx context.Context, dirPath string, exclude []string) (*Artifact, error) {
	staging, err := newStagingDir()
	if err != nil {
		return nil, err
	}

	target := filepath.Join(staging, filepath.Base(dirPath)+".tar.gz")

	if err := b.write(ctx, dirPath, target, exclude); err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}

	return newArtifact(staging, target)
}

func (b *GzipBuilder) write(ctx context.Context, dirPath, target string, exclude []string) error {
	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[name] = struct{}{}
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", target, err)
	}
	defer f.Close()

	level := b.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	gz, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		return fmt.Errorf("archive: gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if _, ok := excluded[d.Name()]; ok && path != dirPath {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dirPath, path)
		if err != nil {
			return err
		}
		// Member names match what tar emits for "tar -C dir ... .".
		name := "./" + filepath.ToSlash(rel)
		if rel == "." {
			name = "./"
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.IsDir() && rel != "." {
			name += "/"
		}

		var linkname string
		switch {
		case info.Mode().IsRegular(), info.IsDir():
		case info.Mode()&fs.ModeSymlink != 0:
			linkname, err = os.Readlink(path)
			if err != nil {
				return err
			}
		default:
			// Sockets, devices, fifos: skipped.
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, linkname)
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Uname = ""
		hdr.Gname = ""
		hdr.ModTime = hdr.ModTime.Truncate(time.Second)
		hdr.AccessTime = time.Time{}
		hdr.ChangeTime = time.Time{}
		hdr.Format = tar.FormatPAX

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			src, err := os.Open(path)
			if err != nil {
				return err
			}
			_, err = io.Copy(tw, src)
			src.Close()
			if err != nil {
				return err
			}
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("archive: build %s: %w", dirPath, walkErr)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("archive: finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("archive: finalize gzip: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("archive: close %s: %w", target, err)
	}
	return nil
}

var _ Builder = (*GzipBuilder)(nil)
