package fs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/orgkb/orgkb"
)

// Ensure Writer implements orgkb.ArtifactWriter at compile time.
var _ orgkb.ArtifactWriter = (*Writer)(nil)

// Writer persists per-page audit artifacts as HTML files. Writes are
// atomic: content goes to a temp file first and is renamed into place,
// so a crash mid-write never leaves a truncated artifact.
type Writer struct {
	baseDir string
}

// NewWriter creates a new Writer that writes to the given base directory.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// WriteArtifact writes the audit view for a page to disk.
func (w *Writer) WriteArtifact(ctx context.Context, pageID string, html string) error {
	if pageID == "" {
		return orgkb.Errorf(orgkb.EINVALID, "page ID required")
	}

	if err := os.MkdirAll(w.baseDir, 0755); err != nil {
		return err
	}

	fullPath := filepath.Join(w.baseDir, pageID+".annot.html")
	tmpPath := fullPath + ".tmp"

	if err := os.WriteFile(tmpPath, []byte(html), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
