package mock

import (
	"context"

	"github.com/orgkb/orgkb"
)

var _ orgkb.PageSource = (*PageSource)(nil)

// PageSource is a mock implementation of orgkb.PageSource.
type PageSource struct {
	LoadPagesFn func(ctx context.Context) ([]*orgkb.RawPage, error)
}

func (s *PageSource) LoadPages(ctx context.Context) ([]*orgkb.RawPage, error) {
	return s.LoadPagesFn(ctx)
}

var _ orgkb.ArtifactWriter = (*ArtifactWriter)(nil)

// ArtifactWriter is a mock implementation of orgkb.ArtifactWriter.
type ArtifactWriter struct {
	WriteArtifactFn func(ctx context.Context, pageID string, html string) error
}

func (w *ArtifactWriter) WriteArtifact(ctx context.Context, pageID string, html string) error {
	return w.WriteArtifactFn(ctx, pageID, html)
}
