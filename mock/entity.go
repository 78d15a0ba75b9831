package mock

import (
	"context"

	"github.com/orgkb/orgkb"
)

var _ orgkb.EntityService = (*EntityService)(nil)

// EntityService is a mock implementation of orgkb.EntityService.
type EntityService struct {
	FindEntitiesFn func(ctx context.Context) ([]*orgkb.Entity, error)
	FindUnitsFn    func(ctx context.Context) ([]*orgkb.Unit, error)
}

func (s *EntityService) FindEntities(ctx context.Context) ([]*orgkb.Entity, error) {
	return s.FindEntitiesFn(ctx)
}

func (s *EntityService) FindUnits(ctx context.Context) ([]*orgkb.Unit, error) {
	return s.FindUnitsFn(ctx)
}
