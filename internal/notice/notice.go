// Package notice writes retrieval notices into archived home directories
// and removes the remaining contents.
//
// Nothing here checks whether deletion is safe; the archiver only reaches
// this package after reconciliation has verified the directory's own
// archive in object storage.
package notice

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTemplate is the retrieval notice left in place of deleted data.
// The %s placeholder receives the remote object path.
const DefaultTemplate = `
Your files have been archived due to inactivity.

If you want to retrieve a copy of your files, please
open a data archival request with your support team.

The following text is the address of your archive,
it must be included with your request:

%s
`

// Writer writes retrieval notices.
type Writer struct {
	// FileName is the notice file's name inside the directory.
	FileName string

	// Template is the notice body with one %s verb for the remote object
	// path. Empty means DefaultTemplate.
	Template string
}

// Write renders the notice for remoteRef and writes it at the root of dir,
// overwriting any stale prior notice of the same name.
func (w *Writer) Write(dir, remoteRef string) error {
	tmpl := w.Template
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	if !strings.Contains(tmpl, "%s") {
		return fmt.Errorf("notice: template has no %%s placeholder")
	}

	path := filepath.Join(dir, w.FileName)
	content := fmt.Sprintf(tmpl, remoteRef)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("notice: write %s: %w", path, err)
	}
	return nil
}

// DeleteContents removes every entry directly under dir whose name is not
// in keep. Removal is recursive per entry and order-independent; the first
// failure is reported rather than swallowed, since a partial deletion needs
// operator attention.
func DeleteContents(dir string, keep map[string]struct{}) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("notice: read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if _, ok := keep[entry.Name()]; ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("notice: remove %s: %w", path, err)
		}
	}
	return nil
}
