// Package scan classifies directory trees as active or inactive in a single
// traversal, computing the tree's byte size as a side product.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Verdict is the result of classifying one directory tree.
//
// SizeBytes is only meaningful when Active is false: the walk short-circuits
// on the first fresh file, so an active tree's size is never computed.
type Verdict struct {
	Active    bool
	SizeBytes int64
}

// Classify walks the tree rooted at root and reports whether any regular
// file was modified at or after cutoff.
//
// Rules:
//   - Only regular files are checked for freshness. A directory's own mtime
//     is never consulted, so dropping a notice file into a sibling tree or
//     deleting entries cannot mark a tree active on its own.
//   - Names in ignored are inert: they are neither checked for freshness nor
//     counted toward the size, at any depth. This keeps a previously written
//     retrieval notice from making a directory look active.
//   - Symlinks and other special files are skipped for both freshness and
//     size. The archiver still copies them; the walker only answers "is this
//     stale".
//   - The mtime comparison is inclusive: a file modified exactly at cutoff
//     counts as fresh.
//
// When the tree is inactive, SizeBytes sums every visited directory's own
// stat size plus every counted regular file's size.
//
// Any filesystem access error is returned as-is; the caller treats it as
// fatal for this directory rather than guessing a verdict.
func Classify(root string, cutoff time.Time, ignored map[string]struct{}) (Verdict, error) {
	rootInfo, err := os.Lstat(root)
	if err != nil {
		return Verdict{}, fmt.Errorf("scan: stat %s: %w", root, err)
	}
	if !rootInfo.IsDir() {
		return Verdict{}, fmt.Errorf("scan: %s is not a directory", root)
	}

	totalSize := rootInfo.Size()

	// Explicit stack instead of recursion, so deep trees cannot exhaust
	// the call stack. The first fresh file unwinds the whole walk.
	stack := []string{root}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return Verdict{}, fmt.Errorf("scan: read %s: %w", dir, err)
		}

		for _, entry := range entries {
			if _, ok := ignored[entry.Name()]; ok {
				continue
			}

			switch {
			case entry.Type().IsRegular():
				info, err := entry.Info()
				if err != nil {
					return Verdict{}, fmt.Errorf("scan: stat %s: %w", filepath.Join(dir, entry.Name()), err)
				}
				if !info.ModTime().Before(cutoff) {
					return Verdict{Active: true}, nil
				}
				totalSize += info.Size()

			case entry.IsDir():
				info, err := entry.Info()
				if err != nil {
					return Verdict{}, fmt.Errorf("scan: stat %s: %w", filepath.Join(dir, entry.Name()), err)
				}
				totalSize += info.Size()
				stack = append(stack, filepath.Join(dir, entry.Name()))

			default:
				// Symlinks, sockets, devices: not consulted.
			}
		}
	}

	return Verdict{Active: false, SizeBytes: totalSize}, nil
}
