package archiver

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coldhome-io/coldhome/internal/archive"
	"github.com/coldhome-io/coldhome/internal/config"
	"github.com/coldhome-io/coldhome/internal/logging"
	"github.com/coldhome-io/coldhome/internal/objectstore"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

const noticeName = "WHERE-ARE-MY-FILES.txt"

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("content of "+filepath.Base(path)), 0o644))
	mtime := testNow.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// fixtureRoot builds a root with userA stale for 400 days and userB touched
// yesterday.
func fixtureRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeAged(t, filepath.Join(root, "userA", "thesis.txt"), 400*24*time.Hour)
	writeAged(t, filepath.Join(root, "userA", "data", "results.csv"), 400*24*time.Hour)
	writeAged(t, filepath.Join(root, "userB", "notebook.ipynb"), 24*time.Hour)
	return root
}

func testConfig(root string) config.ArchiverConfig {
	return config.ArchiverConfig{
		RootDir:        root,
		CutoffDays:     90,
		ObjectPrefix:   "archives",
		NoticeFileName: noticeName,
		Workers:        2,
	}
}

func newTestRunner(cfg config.ArchiverConfig, store objectstore.Store) *Runner {
	return NewRunner(Options{
		Config:    cfg,
		Store:     store,
		Builder:   &archive.GzipBuilder{},
		Logger:    logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard}),
		RefPrefix: "s3://test-bucket",
		Now:       func() time.Time { return testNow },
	})
}

func TestRunArchivesStaleAndSkipsActive(t *testing.T) {
	root := fixtureRoot(t)
	store := objectstore.NewMockStore()

	summary, err := newTestRunner(testConfig(root), store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Active)
	require.Equal(t, 1, summary.Inactive)
	require.Zero(t, summary.Failed)
	require.Greater(t, summary.UncompressedBytes, int64(0))
	require.Greater(t, summary.CompressedBytes, int64(0))

	// userA's archive was uploaded once; no archive exists for userB.
	_, err = store.Head(context.Background(), "archives/userA.tar.gz")
	require.NoError(t, err)
	_, err = store.Head(context.Background(), "archives/userB.tar.gz")
	require.ErrorIs(t, err, objectstore.ErrNotFound)

	// Without -delete, the source stays intact.
	_, err = os.Stat(filepath.Join(root, "userA", "thesis.txt"))
	require.NoError(t, err)
}

func TestRunIsIdempotent(t *testing.T) {
	root := fixtureRoot(t)
	store := objectstore.NewMockStore()
	cfg := testConfig(root)

	_, err := newTestRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	putsAfterFirst := store.PutCalls()
	require.Equal(t, 1, putsAfterFirst)

	summary, err := newTestRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Inactive)
	require.Zero(t, summary.Failed)
	require.Equal(t, putsAfterFirst, store.PutCalls(), "second run must reconcile as skipped, not re-upload")
}

func TestRunDeleteAfterValidatedUpload(t *testing.T) {
	root := fixtureRoot(t)
	store := objectstore.NewMockStore()

	// First pass: upload only.
	_, err := newTestRunner(testConfig(root), store).Run(context.Background())
	require.NoError(t, err)

	// Second pass with delete: validate, write the notice, remove the rest.
	cfg := testConfig(root)
	cfg.Delete = true
	summary, err := newTestRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.Failed)

	entries, err := os.ReadDir(filepath.Join(root, "userA"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, noticeName, entries[0].Name())

	content, err := os.ReadFile(filepath.Join(root, "userA", noticeName))
	require.NoError(t, err)
	require.Contains(t, string(content), "s3://test-bucket/archives/userA.tar.gz")

	// The active user is untouched.
	_, err = os.Stat(filepath.Join(root, "userB", "notebook.ipynb"))
	require.NoError(t, err)
}

func TestRunConflictNeverDeletes(t *testing.T) {
	root := fixtureRoot(t)
	store := objectstore.NewMockStore()
	store.Seed("archives/userA.tar.gz", []byte("unexpected foreign archive"))

	cfg := testConfig(root)
	cfg.Delete = true
	summary, err := newTestRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)

	// No upload happened and the source directory is fully intact.
	require.Zero(t, store.PutCalls())
	_, err = os.Stat(filepath.Join(root, "userA", "thesis.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "userA", noticeName))
	require.True(t, os.IsNotExist(err), "a conflict must not leave a notice behind")
}

func TestRunSizeCeilingSkipsArchiving(t *testing.T) {
	root := fixtureRoot(t)
	store := objectstore.NewMockStore()

	cfg := testConfig(root)
	cfg.SizeCeilingBytes = 1
	summary, err := newTestRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.TooLarge)
	require.Zero(t, summary.Inactive)
	require.Zero(t, store.PutCalls())
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	root := fixtureRoot(t)
	store := objectstore.NewMockStore()

	cfg := testConfig(root)
	cfg.DryRun = true
	cfg.Delete = true
	summary, err := newTestRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Inactive)
	require.Zero(t, summary.CompressedBytes)
	require.Zero(t, store.PutCalls())

	_, err = os.Stat(filepath.Join(root, "userA", "thesis.txt"))
	require.NoError(t, err)
}

func TestRunFailureDoesNotAbortSiblings(t *testing.T) {
	root := t.TempDir()
	for _, user := range []string{"user1", "user2", "user3"} {
		writeAged(t, filepath.Join(root, user, "old.txt"), 400*24*time.Hour)
	}
	writeAged(t, filepath.Join(root, "fresh", "new.txt"), time.Hour)

	store := objectstore.NewMockStore()
	store.PutErr = io.ErrUnexpectedEOF

	summary, err := newTestRunner(testConfig(root), store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Failed, "each stale directory fails on upload independently")
	require.Equal(t, 1, summary.Active, "the active sibling is still classified")
}

func TestRunOnlyFilter(t *testing.T) {
	root := fixtureRoot(t)
	store := objectstore.NewMockStore()

	cfg := testConfig(root)
	cfg.Only = "userB"
	summary, err := newTestRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Active: 1}, summary)
	require.Zero(t, store.PutCalls())
}

func TestRunMissingRootFails(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "nope"))
	_, err := newTestRunner(cfg, objectstore.NewMockStore()).Run(context.Background())
	require.Error(t, err)
}

func TestReporterLines(t *testing.T) {
	var buf bytes.Buffer
	rep := NewReporter(&buf)

	rep.Line(Result{Name: "userB", Status: StatusActive})
	rep.Line(Result{Name: "userA", Status: StatusArchived, CompressedBytes: 2048, Deleted: true})
	rep.Summary(Summary{Active: 1, Inactive: 1, CompressedBytes: 2048})

	out := buf.String()
	require.Contains(t, out, "userB")
	require.Contains(t, out, "active")
	require.Contains(t, out, "deleted")
	require.Contains(t, out, "Active: 1, Inactive: 1")
}
