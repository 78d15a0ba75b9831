package orgkb

import "context"

// Entity is one person from the authoritative employee database.
// Entities are immutable per pipeline run: loaded once, shared
// read-only by every stage.
type Entity struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonicalName"`
	NameVariants  []string `json:"nameVariants,omitempty"` // alternate spellings, degree-prefixed forms
	Emails        []string `json:"emails,omitempty"`       // normalized, lowercase
	Phones        []string `json:"phones,omitempty"`       // normalized 9-digit NSN
	UnitID        string   `json:"unitId,omitempty"`
}

// Validate returns an error if the entity contains invalid fields.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return Errorf(EINVALID, "entity ID required")
	}
	if e.CanonicalName == "" {
		return Errorf(EINVALID, "entity canonical name required")
	}
	return nil
}

// Unit is an organizational unit (department, dean's office, faculty).
type Unit struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parentId,omitempty"`
	Labels   []string `json:"labels,omitempty"` // alternate labels and abbreviations
}

// Validate returns an error if the unit contains invalid fields.
func (u *Unit) Validate() error {
	if u.ID == "" {
		return Errorf(EINVALID, "unit ID required")
	}
	if u.Name == "" {
		return Errorf(EINVALID, "unit name required")
	}
	return nil
}

// EntityService reads the authoritative employee/unit database.
// The pipeline never writes through this interface.
type EntityService interface {
	// FindEntities returns all entities ordered by canonical name.
	FindEntities(ctx context.Context) ([]*Entity, error)

	// FindUnits returns all units ordered by ID.
	FindUnits(ctx context.Context) ([]*Unit, error)
}
