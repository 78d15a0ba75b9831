package sqlite

import (
	"context"

	"github.com/orgkb/orgkb"
)

// Compile-time interface verification.
var _ orgkb.EntityService = (*EntityService)(nil)

// EntityService implements orgkb.EntityService using SQLite. The local
// tables are a cache of the reference database, refreshed by the CLI,
// so the pipeline can build its index without a network round trip.
type EntityService struct {
	db *DB
}

// NewEntityService creates a new EntityService.
func NewEntityService(db *DB) *EntityService {
	return &EntityService{db: db}
}

// FindEntities returns all entities ordered by canonical name.
func (s *EntityService) FindEntities(ctx context.Context) ([]*orgkb.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canonical_name, name_variants, emails, phones, unit_id
		FROM entities
		ORDER BY canonical_name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*orgkb.Entity
	for rows.Next() {
		var e orgkb.Entity
		var variants, emails, phones string

		if err := rows.Scan(&e.ID, &e.CanonicalName, &variants, &emails, &phones, &e.UnitID); err != nil {
			return nil, err
		}
		if e.NameVariants, err = unmarshalList(variants, "name_variants"); err != nil {
			return nil, err
		}
		if e.Emails, err = unmarshalList(emails, "emails"); err != nil {
			return nil, err
		}
		if e.Phones, err = unmarshalList(phones, "phones"); err != nil {
			return nil, err
		}
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}

// FindUnits returns all units ordered by ID.
func (s *EntityService) FindUnits(ctx context.Context) ([]*orgkb.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parent_id, labels
		FROM units
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*orgkb.Unit
	for rows.Next() {
		var u orgkb.Unit
		var labels string

		if err := rows.Scan(&u.ID, &u.Name, &u.ParentID, &labels); err != nil {
			return nil, err
		}
		if u.Labels, err = unmarshalList(labels, "labels"); err != nil {
			return nil, err
		}
		units = append(units, &u)
	}
	return units, rows.Err()
}

// UpsertEntities replaces or inserts entities by ID. Used by the
// refresh command to sync the cache from the reference database.
func (s *EntityService) UpsertEntities(ctx context.Context, entities []*orgkb.Entity) error {
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO entities (id, canonical_name, name_variants, emails, phones, unit_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				canonical_name = excluded.canonical_name,
				name_variants = excluded.name_variants,
				emails = excluded.emails,
				phones = excluded.phones,
				unit_id = excluded.unit_id
		`, e.ID, e.CanonicalName, marshalList(e.NameVariants), marshalList(e.Emails),
			marshalList(e.Phones), e.UnitID)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertUnits replaces or inserts units by ID.
func (s *EntityService) UpsertUnits(ctx context.Context, units []*orgkb.Unit) error {
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO units (id, name, parent_id, labels)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				parent_id = excluded.parent_id,
				labels = excluded.labels
		`, u.ID, u.Name, u.ParentID, marshalList(u.Labels))
		if err != nil {
			return err
		}
	}
	return nil
}
