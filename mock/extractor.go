package mock

import (
	"context"

	"github.com/orgkb/orgkb"
)

var _ orgkb.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of orgkb.Extractor.
type Extractor struct {
	ExtractStructuredFn func(ctx context.Context, schema orgkb.Schema, contextText string) (map[string]string, error)
}

func (e *Extractor) ExtractStructured(ctx context.Context, schema orgkb.Schema, contextText string) (map[string]string, error) {
	return e.ExtractStructuredFn(ctx, schema, contextText)
}
