package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/orgkb/orgkb"
)

// Compile-time interface verification.
var _ orgkb.KnowledgeService = (*KnowledgeService)(nil)

// KnowledgeService implements orgkb.KnowledgeService using SQLite.
type KnowledgeService struct {
	db *DB
}

// NewKnowledgeService creates a new KnowledgeService.
func NewKnowledgeService(db *DB) *KnowledgeService {
	return &KnowledgeService{db: db}
}

// ContactValue returns the stored contact value for an entity and kind.
func (s *KnowledgeService) ContactValue(ctx context.Context, entityID string, kind orgkb.AnchorType) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM contacts WHERE entity_id = ? AND kind = ?
	`, entityID, string(kind)).Scan(&value)

	if err == sql.ErrNoRows {
		return "", orgkb.Errorf(orgkb.ENOTFOUND, "no %s stored for entity %q", kind, entityID)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// InsertContact stores a new contact fact.
func (s *KnowledgeService) InsertContact(ctx context.Context, fact *orgkb.ContactFact) error {
	if err := fact.Validate(); err != nil {
		return err
	}
	if fact.ExtractedAt.IsZero() {
		fact.ExtractedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (entity_id, kind, value, source_page_id, extracted_at)
		VALUES (?, ?, ?, ?, ?)
	`, fact.EntityID, string(fact.Kind), fact.Value, fact.SourcePageID,
		fact.ExtractedAt.Format(time.RFC3339))
	return err
}

// ProcedureFactValue returns the stored value for a procedure field.
func (s *KnowledgeService) ProcedureFactValue(ctx context.Context, procedureID, field string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM procedure_facts WHERE procedure_id = ? AND field = ?
	`, procedureID, field).Scan(&value)

	if err == sql.ErrNoRows {
		return "", orgkb.Errorf(orgkb.ENOTFOUND, "no value stored for %s.%s", procedureID, field)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// InsertProcedureFact stores a new procedure fact.
func (s *KnowledgeService) InsertProcedureFact(ctx context.Context, fact *orgkb.ProcedureFact) error {
	if err := fact.Validate(); err != nil {
		return err
	}
	if fact.ExtractedAt.IsZero() {
		fact.ExtractedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procedure_facts (procedure_id, field, value, source_page_id, extracted_at)
		VALUES (?, ?, ?, ?, ?)
	`, fact.ProcedureID, fact.Field, fact.Value, fact.SourcePageID,
		fact.ExtractedAt.Format(time.RFC3339))
	return err
}

// UpdateProcedureFact replaces a procedure fact, retaining the prior
// value in history.
func (s *KnowledgeService) UpdateProcedureFact(ctx context.Context, fact *orgkb.ProcedureFact, prior string) error {
	if err := fact.Validate(); err != nil {
		return err
	}
	if fact.ExtractedAt.IsZero() {
		fact.ExtractedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procedure_fact_history (procedure_id, field, value, replaced_at)
		VALUES (?, ?, ?, ?)
	`, fact.ProcedureID, fact.Field, prior, fact.ExtractedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE procedure_facts
		SET value = ?, source_page_id = ?, extracted_at = ?
		WHERE procedure_id = ? AND field = ?
	`, fact.Value, fact.SourcePageID, fact.ExtractedAt.Format(time.RFC3339),
		fact.ProcedureID, fact.Field)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return orgkb.Errorf(orgkb.ENOTFOUND, "no value stored for %s.%s", fact.ProcedureID, fact.Field)
	}
	return nil
}

// FactHistory returns prior values for a procedure field, newest first.
func (s *KnowledgeService) FactHistory(ctx context.Context, procedureID, field string) ([]orgkb.ProcedureFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT procedure_id, field, value, replaced_at
		FROM procedure_fact_history
		WHERE procedure_id = ? AND field = ?
		ORDER BY id DESC
	`, procedureID, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []orgkb.ProcedureFact
	for rows.Next() {
		var f orgkb.ProcedureFact
		var replacedAt string
		if err := rows.Scan(&f.ProcedureID, &f.Field, &f.Value, &replacedAt); err != nil {
			return nil, err
		}
		if f.ExtractedAt, err = parseRFC3339(replacedAt, "replaced_at"); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// CreateChunks stores embedding chunks for a page, replacing any
// previous chunks for the same page.
func (s *KnowledgeService) CreateChunks(ctx context.Context, pageID string, chunks []orgkb.Chunk) error {
	if pageID == "" {
		return orgkb.Errorf(orgkb.EINVALID, "page ID required")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE page_id = ?`, pageID); err != nil {
		return err
	}
	for i := range chunks {
		c := &chunks[i]
		if err := c.Validate(); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO chunks (id, page_id, block, breadcrumbs, content, embedding_text, source_url)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.PageID, c.Block, marshalList(c.Breadcrumbs), c.Content, c.EmbeddingText, c.SourceURL)
		if err != nil {
			return err
		}
	}
	return nil
}

// FindChunks returns stored chunks for a page in insertion order.
func (s *KnowledgeService) FindChunks(ctx context.Context, pageID string, limit, offset int) ([]orgkb.Chunk, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`
		SELECT id, page_id, block, breadcrumbs, content, embedding_text, source_url
		FROM chunks
		WHERE page_id = ?
		ORDER BY block, id
	`)
	args = append(args, pageID)
	appendPagination(&query, &args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []orgkb.Chunk
	for rows.Next() {
		var c orgkb.Chunk
		var breadcrumbs string
		if err := rows.Scan(&c.ID, &c.PageID, &c.Block, &breadcrumbs, &c.Content, &c.EmbeddingText, &c.SourceURL); err != nil {
			return nil, err
		}
		if c.Breadcrumbs, err = unmarshalList(breadcrumbs, "breadcrumbs"); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// InsertRun records a completed pipeline run.
func (s *KnowledgeService) InsertRun(ctx context.Context, report *orgkb.RunReport, reportJSON string) error {
	if report.RunID == "" {
		return orgkb.Errorf(orgkb.EINVALID, "run ID required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, pages, report)
		VALUES (?, ?, ?, ?, ?)
	`, report.RunID, report.StartedAt.Format(time.RFC3339),
		report.FinishedAt.Format(time.RFC3339), len(report.Pages), reportJSON)
	return err
}

// LastRun returns the stored report JSON of the most recent run.
// Returns ENOTFOUND if no run has been recorded.
func (s *KnowledgeService) LastRun(ctx context.Context) (string, error) {
	var report string
	err := s.db.QueryRowContext(ctx, `
		SELECT report FROM runs ORDER BY started_at DESC, id DESC LIMIT 1
	`).Scan(&report)

	if err == sql.ErrNoRows {
		return "", orgkb.Errorf(orgkb.ENOTFOUND, "no runs recorded")
	}
	if err != nil {
		return "", err
	}
	return report, nil
}
