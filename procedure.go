package orgkb

import (
	"context"
	"time"
)

// Procedure is one known administrative procedure from the catalog.
type Procedure struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Aliases     []string  `json:"aliases,omitempty"`
	Acronyms    []string  `json:"acronyms,omitempty"`
	Description string    `json:"description,omitempty"`
	Vector      []float32 `json:"vector,omitempty"` // precomputed description embedding
	Schema      Schema    `json:"schema"`
}

// Validate returns an error if the procedure contains invalid fields.
func (p *Procedure) Validate() error {
	if p.ID == "" {
		return Errorf(EINVALID, "procedure ID required")
	}
	if p.Name == "" {
		return Errorf(EINVALID, "procedure name required")
	}
	return nil
}

// FieldType is the declared type of a schema field.
type FieldType string

// Field types understood by schema validation.
const (
	FieldString FieldType = "string"
	FieldText   FieldType = "text"
	FieldDate   FieldType = "date"
	FieldList   FieldType = "list"
)

// Field is one named field in a structured extraction schema.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Schema describes the structured fields extraction must produce for a
// procedure: steps, conditions, deadlines, submission info, and so on.
type Schema struct {
	Fields []Field `json:"fields"`
}

// DefaultSchema returns the fields extracted for procedures whose
// catalog entry declares none: the general shape of an administrative
// procedure description.
func DefaultSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "steps", Type: FieldText, Description: "kolejne kroki załatwienia sprawy"},
		{Name: "conditions", Type: FieldText, Description: "warunki, które musi spełnić wnioskodawca"},
		{Name: "exceptions", Type: FieldText, Description: "wyjątki i przypadki szczególne"},
		{Name: "notes", Type: FieldText, Description: "dodatkowe uwagi"},
		{Name: "deadlines", Type: FieldString, Description: "terminy załatwienia sprawy"},
		{Name: "submission_info", Type: FieldText, Description: "miejsce i sposób złożenia wniosku"},
	}}
}

// FieldNamed returns the schema field with the given name, or nil.
func (s Schema) FieldNamed(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Validate checks an extraction result against the schema. Extraction
// output is untrusted: unknown fields are rejected rather than stored.
func (s Schema) Validate(fields map[string]string) error {
	for name := range fields {
		if s.FieldNamed(name) == nil {
			return Errorf(EINVALID, "extraction returned unknown field %q", name)
		}
	}
	for _, f := range s.Fields {
		if f.Required {
			if v, ok := fields[f.Name]; !ok || v == "" {
				return Errorf(EINVALID, "extraction missing required field %q", f.Name)
			}
		}
	}
	return nil
}

// MatchMethod says which matcher located a procedure mention.
type MatchMethod string

// Match methods, strongest first.
const (
	MatchRule      MatchMethod = "rule"
	MatchFuzzy     MatchMethod = "fuzzy"
	MatchEmbedding MatchMethod = "embedding"
)

// ProcedureCandidate is a located mention of a known procedure pending
// structured extraction.
type ProcedureCandidate struct {
	ProcedureID string      `json:"procedureId"`
	Span        Span        `json:"span"`
	Block       int         `json:"block"`
	Method      MatchMethod `json:"method"`
	Score       float64     `json:"score"`

	// Context is the text window handed to structured extraction. When
	// the procedure matches exactly once on a page the window is the
	// whole page; otherwise the local block.
	Context   string `json:"context,omitempty"`
	WholePage bool   `json:"wholePage,omitempty"`
}

// ProcedureFact is the atomic unit persisted and diffed by the
// reconciler: one field value for one procedure, traced to its page.
type ProcedureFact struct {
	ProcedureID  string    `json:"procedureId"`
	Field        string    `json:"field"`
	Value        string    `json:"value"`
	SourcePageID string    `json:"sourcePageId"`
	ExtractedAt  time.Time `json:"extractedAt"`
}

// Validate returns an error if the fact contains invalid fields.
func (f *ProcedureFact) Validate() error {
	if f.ProcedureID == "" {
		return Errorf(EINVALID, "fact procedure ID required")
	}
	if f.Field == "" {
		return Errorf(EINVALID, "fact field name required")
	}
	return nil
}

// Extractor turns a context window into structured fields for a
// procedure schema. Implementations call an external model and are
// treated as untrusted: the pipeline validates output against the
// schema before proposing facts, and calls carry a bounded timeout.
type Extractor interface {
	ExtractStructured(ctx context.Context, schema Schema, contextText string) (map[string]string, error)
}

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
