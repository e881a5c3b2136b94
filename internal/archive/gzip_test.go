package archive

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/coldhome-io/coldhome/internal/digest"
)

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "alice")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "projects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects", "main.py"), []byte("print()"), 0o644))
	require.NoError(t, os.Symlink("notes.txt", filepath.Join(dir, "link")))

	// Pin mtimes so the fixture itself is stable.
	mtime := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, p := range []string{
		filepath.Join(dir, "notes.txt"),
		filepath.Join(dir, "projects", "main.py"),
		filepath.Join(dir, "projects"),
		dir,
	} {
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	return dir
}

func memberNames(t *testing.T, archivePath string) []string {
	t.Helper()
	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	return names
}

func TestGzipBuilderProducesArchiveNamedAfterDir(t *testing.T) {
	dir := fixtureDir(t)

	artifact, err := (&GzipBuilder{}).Build(context.Background(), dir, nil)
	require.NoError(t, err)
	defer artifact.Release()

	require.Equal(t, "alice.tar.gz", artifact.Name)
	require.Greater(t, artifact.SizeBytes, int64(0))

	names := memberNames(t, artifact.Path)
	require.Contains(t, names, "./notes.txt")
	require.Contains(t, names, "./projects/main.py")
	require.Contains(t, names, "./link", "symlinks are archived even though the walker skips them")
}

func TestGzipBuilderIsDeterministic(t *testing.T) {
	dir := fixtureDir(t)
	b := &GzipBuilder{}

	first, err := b.Build(context.Background(), dir, nil)
	require.NoError(t, err)
	defer first.Release()

	second, err := b.Build(context.Background(), dir, nil)
	require.NoError(t, err)
	defer second.Release()

	d1, err := digest.Local(first.Path)
	require.NoError(t, err)
	d2, err := digest.Local(second.Path)
	require.NoError(t, err)
	require.Equal(t, d1, d2, "unchanged source must produce a byte-identical archive")
}

func TestGzipBuilderMembersAreSorted(t *testing.T) {
	dir := fixtureDir(t)

	artifact, err := (&GzipBuilder{}).Build(context.Background(), dir, nil)
	require.NoError(t, err)
	defer artifact.Release()

	names := memberNames(t, artifact.Path)
	require.True(t, sort.StringsAreSorted(names), "members must be in lexicographic walk order: %v", names)
}

func TestGzipBuilderExcludesNames(t *testing.T) {
	dir := fixtureDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "WHERE-ARE-MY-FILES.txt"), []byte("notice"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects", "WHERE-ARE-MY-FILES.txt"), []byte("notice"), 0o644))

	artifact, err := (&GzipBuilder{}).Build(context.Background(), dir, []string{"WHERE-ARE-MY-FILES.txt"})
	require.NoError(t, err)
	defer artifact.Release()

	for _, name := range memberNames(t, artifact.Path) {
		require.NotContains(t, name, "WHERE-ARE-MY-FILES.txt")
	}
}

func TestArtifactReleaseReclaimsStaging(t *testing.T) {
	dir := fixtureDir(t)

	artifact, err := (&GzipBuilder{}).Build(context.Background(), dir, nil)
	require.NoError(t, err)

	require.NoError(t, artifact.Release())
	_, err = os.Stat(artifact.Path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, artifact.Release(), "release is idempotent")
}

func TestGzipBuilderMissingDirFails(t *testing.T) {
	_, err := (&GzipBuilder{}).Build(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
}
