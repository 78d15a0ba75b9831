package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/orgkb/orgkb"
)

// Ensure LoggingKnowledgeService implements orgkb.KnowledgeService.
var _ orgkb.KnowledgeService = (*LoggingKnowledgeService)(nil)

// LoggingKnowledgeService wraps a KnowledgeService with write logging.
// Reads stay quiet; every write is logged so a run's store mutations
// can be reconstructed from the log.
type LoggingKnowledgeService struct {
	next   orgkb.KnowledgeService
	logger *slog.Logger
}

// NewLoggingKnowledgeService creates a new LoggingKnowledgeService.
func NewLoggingKnowledgeService(next orgkb.KnowledgeService, logger *slog.Logger) *LoggingKnowledgeService {
	return &LoggingKnowledgeService{next: next, logger: logger}
}

// ContactValue delegates to the wrapped service.
func (s *LoggingKnowledgeService) ContactValue(ctx context.Context, entityID string, kind orgkb.AnchorType) (string, error) {
	return s.next.ContactValue(ctx, entityID, kind)
}

// InsertContact delegates to the wrapped service and logs the write.
func (s *LoggingKnowledgeService) InsertContact(ctx context.Context, fact *orgkb.ContactFact) (err error) {
	defer func() {
		s.logger.Info("insert contact",
			"entity", fact.EntityID,
			"kind", fact.Kind,
			"page", fact.SourcePageID,
			"err", err,
		)
	}()
	return s.next.InsertContact(ctx, fact)
}

// ProcedureFactValue delegates to the wrapped service.
func (s *LoggingKnowledgeService) ProcedureFactValue(ctx context.Context, procedureID, field string) (string, error) {
	return s.next.ProcedureFactValue(ctx, procedureID, field)
}

// InsertProcedureFact delegates to the wrapped service and logs the write.
func (s *LoggingKnowledgeService) InsertProcedureFact(ctx context.Context, fact *orgkb.ProcedureFact) (err error) {
	defer func() {
		s.logger.Info("insert fact",
			"procedure", fact.ProcedureID,
			"field", fact.Field,
			"page", fact.SourcePageID,
			"err", err,
		)
	}()
	return s.next.InsertProcedureFact(ctx, fact)
}

// UpdateProcedureFact delegates to the wrapped service and logs the write.
func (s *LoggingKnowledgeService) UpdateProcedureFact(ctx context.Context, fact *orgkb.ProcedureFact, prior string) (err error) {
	defer func() {
		s.logger.Info("update fact",
			"procedure", fact.ProcedureID,
			"field", fact.Field,
			"page", fact.SourcePageID,
			"err", err,
		)
	}()
	return s.next.UpdateProcedureFact(ctx, fact, prior)
}

// CreateChunks delegates to the wrapped service and logs the write.
func (s *LoggingKnowledgeService) CreateChunks(ctx context.Context, pageID string, chunks []orgkb.Chunk) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("create chunks",
			"page", pageID,
			"count", len(chunks),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.CreateChunks(ctx, pageID, chunks)
}
