// Package fs provides file-based page input and artifact output.
package fs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/orgkb/orgkb"
)

// Ensure PageStore implements orgkb.PageSource at compile time.
var _ orgkb.PageSource = (*PageStore)(nil)

// PageStore loads pre-fetched HTML dumps from a directory. Each .html
// file is one page; its page ID is the slugified relative path. An
// optional pages.yaml manifest in the directory root maps relative
// paths to their original source URLs.
type PageStore struct {
	dir string
}

// NewPageStore creates a PageStore over the given directory.
func NewPageStore(dir string) *PageStore {
	return &PageStore{dir: dir}
}

type manifest struct {
	Pages map[string]string `yaml:"pages"` // relative path -> source URL
}

// LoadPages reads all HTML files under the store directory, sorted by
// path so runs are deterministic.
func (s *PageStore) LoadPages(ctx context.Context) ([]*orgkb.RawPage, error) {
	m, err := s.loadManifest()
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".html" || ext == ".htm" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, orgkb.Errorf(orgkb.ENOTFOUND, "reading page directory %s: %v", s.dir, err)
	}
	sort.Strings(paths)

	pages := make([]*orgkb.RawPage, 0, len(paths))
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)

		page := &orgkb.RawPage{
			PageID:    PathToPageID(rel),
			SourceURL: m.Pages[rel],
			HTML:      string(data),
		}
		if page.SourceURL == "" {
			page.SourceURL = "file://" + rel
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (s *PageStore) loadManifest() (manifest, error) {
	var m manifest
	data, err := os.ReadFile(filepath.Join(s.dir, "pages.yaml"))
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, orgkb.Errorf(orgkb.EINVALID, "invalid pages.yaml: %v", err)
	}
	return m, nil
}

// PathToPageID turns a relative file path into a stable page ID.
// Example: wydzial/kontakt.html -> wydzial-kontakt
func PathToPageID(rel string) string {
	id := strings.TrimSuffix(rel, filepath.Ext(rel))
	id = strings.ReplaceAll(id, "/", "-")
	id = strings.ReplaceAll(id, " ", "-")
	return strings.ToLower(id)
}
