package postgres_test

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgkb/orgkb/postgres"
)

func str(s string) *string { return &s }
func i64(v int64) *int64   { return &v }

func TestEntityService_FindEntities(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT employee_id, full_name, first_name, last_name, degree`).
		WillReturnRows(pgxmock.NewRows([]string{"employee_id", "full_name", "first_name", "last_name", "degree"}).
			AddRow(int64(1), str("Jan Kowalski"), str("Jan"), str("Kowalski"), str("mgr inż.")).
			AddRow(int64(2), (*string)(nil), str("Anna"), str("Nowak"), (*string)(nil)))

	mock.ExpectQuery(`SELECT employee_id, unit_id, work_email, work_phone`).
		WillReturnRows(pgxmock.NewRows([]string{"employee_id", "unit_id", "work_email", "work_phone"}).
			AddRow(int64(1), i64(10), str("Jan.Kowalski@Example.gov.pl; jan@example.gov.pl"), str("+48 22 123 45 67 wew. 12")).
			AddRow(int64(2), i64(11), str("anna.nowak@example.gov.pl"), (*string)(nil)).
			AddRow(int64(99), i64(12), str("ghost@example.gov.pl"), (*string)(nil)))

	svc := postgres.NewEntityService(mock)
	entities, err := svc.FindEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 2)

	jan := entities[0]
	assert.Equal(t, "per-1", jan.ID)
	assert.Equal(t, "Jan Kowalski", jan.CanonicalName)
	assert.Equal(t, []string{"mgr inż. Jan Kowalski"}, jan.NameVariants)
	assert.Equal(t, "unit-10", jan.UnitID)
	// Multi-valued email column is split and normalized
	assert.Equal(t, []string{"jan.kowalski@example.gov.pl", "jan@example.gov.pl"}, jan.Emails)
	// Phone normalized to 9-digit NSN, extension stripped
	assert.Equal(t, []string{"221234567"}, jan.Phones)

	anna := entities[1]
	assert.Equal(t, "per-2", anna.ID)
	// Missing full_name falls back to first + last
	assert.Equal(t, "Anna Nowak", anna.CanonicalName)
	assert.Empty(t, anna.NameVariants)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityService_FindUnits(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT unit_id, name, parent_id`).
		WillReturnRows(pgxmock.NewRows([]string{"unit_id", "name", "parent_id"}).
			AddRow(int64(10), str("Wydział Architektury"), (*int64)(nil)).
			AddRow(int64(11), str("Referat Planowania"), i64(10)))

	svc := postgres.NewEntityService(mock)
	units, err := svc.FindUnits(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Equal(t, "unit-10", units[0].ID)
	assert.Equal(t, "Wydział Architektury", units[0].Name)
	assert.Empty(t, units[0].ParentID)
	assert.Equal(t, "unit-10", units[1].ParentID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityService_FindProcedureNames(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT proc_id, name`).
		WillReturnRows(pgxmock.NewRows([]string{"proc_id", "name"}).
			AddRow(int64(7), str("Decyzja o warunkach zabudowy")).
			AddRow(int64(8), str("  ")))

	svc := postgres.NewEntityService(mock)
	procs, err := svc.FindProcedureNames(context.Background())
	require.NoError(t, err)

	// Blank names are dropped
	require.Len(t, procs, 1)
	assert.Equal(t, "Decyzja o warunkach zabudowy", procs["proc-7"])

	require.NoError(t, mock.ExpectationsWereMet())
}
