package mock

import (
	"context"

	"github.com/orgkb/orgkb"
)

var _ orgkb.KnowledgeService = (*KnowledgeService)(nil)

// KnowledgeService is a mock implementation of orgkb.KnowledgeService.
type KnowledgeService struct {
	ContactValueFn        func(ctx context.Context, entityID string, kind orgkb.AnchorType) (string, error)
	InsertContactFn       func(ctx context.Context, fact *orgkb.ContactFact) error
	ProcedureFactValueFn  func(ctx context.Context, procedureID, field string) (string, error)
	InsertProcedureFactFn func(ctx context.Context, fact *orgkb.ProcedureFact) error
	UpdateProcedureFactFn func(ctx context.Context, fact *orgkb.ProcedureFact, prior string) error
	CreateChunksFn        func(ctx context.Context, pageID string, chunks []orgkb.Chunk) error
}

func (s *KnowledgeService) ContactValue(ctx context.Context, entityID string, kind orgkb.AnchorType) (string, error) {
	return s.ContactValueFn(ctx, entityID, kind)
}

func (s *KnowledgeService) InsertContact(ctx context.Context, fact *orgkb.ContactFact) error {
	return s.InsertContactFn(ctx, fact)
}

func (s *KnowledgeService) ProcedureFactValue(ctx context.Context, procedureID, field string) (string, error) {
	return s.ProcedureFactValueFn(ctx, procedureID, field)
}

func (s *KnowledgeService) InsertProcedureFact(ctx context.Context, fact *orgkb.ProcedureFact) error {
	return s.InsertProcedureFactFn(ctx, fact)
}

func (s *KnowledgeService) UpdateProcedureFact(ctx context.Context, fact *orgkb.ProcedureFact, prior string) error {
	return s.UpdateProcedureFactFn(ctx, fact, prior)
}

func (s *KnowledgeService) CreateChunks(ctx context.Context, pageID string, chunks []orgkb.Chunk) error {
	return s.CreateChunksFn(ctx, pageID, chunks)
}
