// Package postgres reads the curated reference database over pgx. The
// database is the source of truth for employees, units, and procedure
// names; this package only reads it, writes go to the local knowledge
// store.
package postgres

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/orgkb/orgkb"
)

// Pool is the subset of pgxpool.Pool the reference reader needs.
// pgxmock satisfies it in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// EntityService implements orgkb.EntityService against the reference
// database. Employees are joined with their active employment rows;
// contact details live on employment, not on the employee record.
type EntityService struct {
	pool Pool
}

// Compile-time interface verification.
var _ orgkb.EntityService = (*EntityService)(nil)

// NewEntityService creates a new EntityService.
func NewEntityService(pool Pool) *EntityService {
	return &EntityService{pool: pool}
}

var multiValueRe = regexp.MustCompile(`[;,\n]+`)

// splitMulti splits a multi-valued column (emails, phones) on the
// separators the reference database uses.
func splitMulti(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range multiValueRe.Split(value, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FindEntities returns all employees with their active employment
// contact details, ordered by canonical name.
func (s *EntityService) FindEntities(ctx context.Context) ([]*orgkb.Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT employee_id, full_name, first_name, last_name, degree
		FROM employee
		ORDER BY last_name, first_name, employee_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*orgkb.Entity)
	var order []string
	for rows.Next() {
		var id int64
		var fullName, firstName, lastName, degree *string
		if err := rows.Scan(&id, &fullName, &firstName, &lastName, &degree); err != nil {
			return nil, err
		}

		e := &orgkb.Entity{ID: entityID(id)}
		e.CanonicalName = strings.TrimSpace(deref(fullName))
		if e.CanonicalName == "" {
			e.CanonicalName = strings.TrimSpace(deref(firstName) + " " + deref(lastName))
		}
		// A degree-prefixed variant catches listings like "mgr inż. Jan
		// Kowalski" on staff pages.
		if d := strings.TrimSpace(deref(degree)); d != "" && e.CanonicalName != "" {
			e.NameVariants = append(e.NameVariants, d+" "+e.CanonicalName)
		}
		byID[e.ID] = e
		order = append(order, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.mergeEmployment(ctx, byID); err != nil {
		return nil, err
	}

	out := make([]*orgkb.Entity, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// mergeEmployment folds active employment rows into the entities:
// work emails and phones aggregated and deduplicated, unit assignment
// taken from the employment record.
func (s *EntityService) mergeEmployment(ctx context.Context, byID map[string]*orgkb.Entity) error {
	rows, err := s.pool.Query(ctx, `
		SELECT employee_id, unit_id, work_email, work_phone
		FROM employment
		WHERE valid_to IS NULL
		ORDER BY employee_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var empID int64
		var unitID *int64
		var workEmail, workPhone *string
		if err := rows.Scan(&empID, &unitID, &workEmail, &workPhone); err != nil {
			return err
		}

		e, ok := byID[entityID(empID)]
		if !ok {
			continue // employment without an employee record
		}
		if unitID != nil {
			e.UnitID = unitIDString(*unitID)
		}
		for _, em := range splitMulti(deref(workEmail)) {
			norm := orgkb.NormalizeEmail(em)
			if norm != "" && !contains(e.Emails, norm) {
				e.Emails = append(e.Emails, norm)
			}
		}
		for _, ph := range splitMulti(deref(workPhone)) {
			if nsn, ok := orgkb.NormalizePhone(ph); ok && !contains(e.Phones, nsn) {
				e.Phones = append(e.Phones, nsn)
			}
		}
	}
	return rows.Err()
}

// FindUnits returns all organizational units ordered by ID.
func (s *EntityService) FindUnits(ctx context.Context) ([]*orgkb.Unit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT unit_id, name, parent_id
		FROM unit
		ORDER BY unit_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*orgkb.Unit
	for rows.Next() {
		var id int64
		var name *string
		var parentID *int64
		if err := rows.Scan(&id, &name, &parentID); err != nil {
			return nil, err
		}
		u := &orgkb.Unit{
			ID:   unitIDString(id),
			Name: strings.TrimSpace(deref(name)),
		}
		if parentID != nil {
			u.ParentID = unitIDString(*parentID)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// FindProcedureNames returns the known procedure IDs and names. The
// catalog file adds aliases and schemas on top of these.
func (s *EntityService) FindProcedureNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT proc_id, name
		FROM procedure_def
		ORDER BY proc_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id int64
		var name *string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		if nm := strings.TrimSpace(deref(name)); nm != "" {
			out[procedureID(id)] = nm
		}
	}
	return out, rows.Err()
}

func entityID(id int64) string     { return "per-" + strconv.FormatInt(id, 10) }
func unitIDString(id int64) string { return "unit-" + strconv.FormatInt(id, 10) }
func procedureID(id int64) string  { return "proc-" + strconv.FormatInt(id, 10) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
