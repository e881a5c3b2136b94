package archiver

import (
	"fmt"
	"os"
	"path/filepath"
)

// Candidate is one home directory up for a staleness decision. Candidates
// are ephemeral; they exist for a single orchestration pass.
type Candidate struct {
	// Name is the directory's base name, used for display and as the
	// archive name.
	Name string

	// Path is the absolute path of the directory.
	Path string
}

// EnumerateCandidates lists the immediate subdirectories of root. When only
// is non-empty, the run is restricted to that single named subdirectory,
// which must exist.
func EnumerateCandidates(root, only string) ([]Candidate, error) {
	if only != "" {
		path := filepath.Join(root, only)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("archiver: candidate %s: %w", path, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("archiver: candidate %s is not a directory", path)
		}
		return []Candidate{{Name: only, Path: path}}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("archiver: read root %s: %w", root, err)
	}

	var candidates []Candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidates = append(candidates, Candidate{
			Name: entry.Name(),
			Path: filepath.Join(root, entry.Name()),
		})
	}
	return candidates, nil
}
