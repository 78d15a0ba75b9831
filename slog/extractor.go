// Package slog provides logging decorators for orgkb services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/orgkb/orgkb"
)

// Ensure LoggingExtractor implements orgkb.Extractor.
var _ orgkb.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor with debug logging.
type LoggingExtractor struct {
	next   orgkb.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next orgkb.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// ExtractStructured delegates to the wrapped extractor and logs the operation.
func (e *LoggingExtractor) ExtractStructured(ctx context.Context, schema orgkb.Schema, contextText string) (fields map[string]string, err error) {
	defer func(begin time.Time) {
		e.logger.Info("structured extraction",
			"schemaFields", len(schema.Fields),
			"contextBytes", len(contextText),
			"extracted", len(fields),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.ExtractStructured(ctx, schema, contextText)
}
