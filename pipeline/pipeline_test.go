package pipeline_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgkb/orgkb"
	"github.com/orgkb/orgkb/mock"
	"github.com/orgkb/orgkb/pipeline"
)

// testDoc builds a small contact page: a heading, a name, an email,
// and a procedure mention, with spans laid out like the real parser.
func testDoc(pageID string) *orgkb.Document {
	text := "Kontakt\nJan Kowalski\njan.kowalski@gmina.pl\nWydanie dowodu osobistego"
	return &orgkb.Document{
		PageID:    pageID,
		SourceURL: "https://gmina.pl/" + pageID,
		Text:      text,
		RawHTML:   "<html><body><h1>Kontakt</h1><p>Jan Kowalski</p></body></html>",
		Blocks: []orgkb.Block{
			{Index: 0, Parent: 0, Kind: orgkb.BlockHeading, HeadingLevel: 1, Span: orgkb.Span{Start: 0, End: 7}, Text: "Kontakt"},
			{Index: 1, Parent: 0, Kind: orgkb.BlockParagraph, Breadcrumbs: []string{"Kontakt"}, Span: orgkb.Span{Start: 8, End: 20}, Text: "Jan Kowalski"},
			{Index: 2, Parent: 0, Kind: orgkb.BlockParagraph, Breadcrumbs: []string{"Kontakt"}, Span: orgkb.Span{Start: 21, End: 42}, Text: "jan.kowalski@gmina.pl"},
			{Index: 3, Parent: 0, Kind: orgkb.BlockParagraph, Breadcrumbs: []string{"Kontakt"}, Span: orgkb.Span{Start: 43, End: 68}, Text: "Wydanie dowodu osobistego"},
		},
	}
}

func testIndex(t *testing.T) *orgkb.Index {
	t.Helper()
	ix, err := orgkb.BuildIndex([]*orgkb.Entity{
		{
			ID:            "per-1",
			CanonicalName: "Jan Kowalski",
			Emails:        []string{"jan.kowalski@gmina.pl"},
		},
	}, nil)
	require.NoError(t, err)
	return ix
}

func testTagger(t *testing.T) *orgkb.Tagger {
	t.Helper()
	tagger, err := orgkb.NewTagger([]*orgkb.Procedure{
		{
			ID:   "proc-dowod",
			Name: "Wydanie dowodu osobistego",
			Schema: orgkb.Schema{Fields: []orgkb.Field{
				{Name: "oplaty", Type: orgkb.FieldString},
			}},
		},
	}, nil, orgkb.DefaultTagConfig())
	require.NoError(t, err)
	return tagger
}

// notFoundStore returns a knowledge store that holds nothing and
// records every write.
func notFoundStore(contacts *[]orgkb.ContactFact, facts *[]orgkb.ProcedureFact, chunks *[]orgkb.Chunk) *mock.KnowledgeService {
	return &mock.KnowledgeService{
		ContactValueFn: func(_ context.Context, entityID string, kind orgkb.AnchorType) (string, error) {
			return "", orgkb.Errorf(orgkb.ENOTFOUND, "no contact")
		},
		InsertContactFn: func(_ context.Context, fact *orgkb.ContactFact) error {
			*contacts = append(*contacts, *fact)
			return nil
		},
		ProcedureFactValueFn: func(_ context.Context, procedureID, field string) (string, error) {
			return "", orgkb.Errorf(orgkb.ENOTFOUND, "no fact")
		},
		InsertProcedureFactFn: func(_ context.Context, fact *orgkb.ProcedureFact) error {
			*facts = append(*facts, *fact)
			return nil
		},
		CreateChunksFn: func(_ context.Context, pageID string, cs []orgkb.Chunk) error {
			*chunks = append(*chunks, cs...)
			return nil
		},
	}
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	t.Run("processes a page end to end", func(t *testing.T) {
		t.Parallel()

		var contacts []orgkb.ContactFact
		var facts []orgkb.ProcedureFact
		var chunks []orgkb.Chunk
		var artifact string
		var embedCalls atomic.Int64

		r := &pipeline.Runner{
			Source: &mock.PageSource{
				LoadPagesFn: func(_ context.Context) ([]*orgkb.RawPage, error) {
					return []*orgkb.RawPage{{PageID: "kontakt", SourceURL: "https://gmina.pl/kontakt", HTML: "<html/>"}}, nil
				},
			},
			Parser: &mock.Parser{
				ParseFn: func(pageID, sourceURL, _ string) (*orgkb.Document, error) {
					return testDoc(pageID), nil
				},
			},
			Converter: &mock.Converter{
				ConvertFn: func(_ string) (string, error) {
					return "# Kontakt\n\nWydanie dowodu osobistego", nil
				},
			},
			Index:  testIndex(t),
			Tagger: testTagger(t),
			Extractor: &mock.Extractor{
				ExtractStructuredFn: func(_ context.Context, _ orgkb.Schema, contextText string) (map[string]string, error) {
					assert.Contains(t, contextText, "Kontakt")
					return map[string]string{"oplaty": "100 zł"}, nil
				},
			},
			Embedder: &mock.Embedder{
				EmbedBatchFn: func(_ context.Context, texts []string) ([][]float32, error) {
					embedCalls.Add(1)
					vecs := make([][]float32, len(texts))
					for i := range vecs {
						vecs[i] = []float32{1, 0, 0}
					}
					return vecs, nil
				},
			},
			Knowledge: notFoundStore(&contacts, &facts, &chunks),
			Artifacts: &mock.ArtifactWriter{
				WriteArtifactFn: func(_ context.Context, _ string, html string) error {
					artifact = html
					return nil
				},
			},
			RetryDelays: []time.Duration{0},
		}

		report, err := r.Run(context.Background())

		require.NoError(t, err)
		require.Len(t, report.Pages, 1)
		page := report.Pages[0]
		assert.Empty(t, page.Errs)
		assert.Equal(t, "kontakt", page.PageID)
		assert.Equal(t, 2, page.Anchors) // name + email
		assert.Equal(t, 1, page.Regions)
		assert.Equal(t, 1, page.Candidates)
		assert.Equal(t, 1, page.Chunks)
		assert.Equal(t, 2, page.FactsInserted) // email contact + oplaty fact
		assert.Zero(t, page.FactsConflicted)

		require.Len(t, contacts, 1)
		assert.Equal(t, "per-1", contacts[0].EntityID)
		assert.Equal(t, orgkb.AnchorEmail, contacts[0].Kind)
		assert.Equal(t, "jan.kowalski@gmina.pl", contacts[0].Value)

		require.Len(t, facts, 1)
		assert.Equal(t, "proc-dowod", facts[0].ProcedureID)
		assert.Equal(t, "oplaty", facts[0].Field)
		assert.Equal(t, "100 zł", facts[0].Value)
		assert.Equal(t, "kontakt", facts[0].SourcePageID)

		require.Len(t, chunks, 1)
		assert.Equal(t, []float32{1, 0, 0}, chunks[0].Embedding)
		assert.Equal(t, int64(1), embedCalls.Load())

		assert.Contains(t, artifact, "data-annot")
		assert.NotEmpty(t, report.RunID)
		assert.False(t, report.FinishedAt.Before(report.StartedAt))
	})

	t.Run("page failure does not abort the batch", func(t *testing.T) {
		t.Parallel()

		var contacts []orgkb.ContactFact
		var facts []orgkb.ProcedureFact
		var chunks []orgkb.Chunk

		r := &pipeline.Runner{
			Source: &mock.PageSource{
				LoadPagesFn: func(_ context.Context) ([]*orgkb.RawPage, error) {
					return []*orgkb.RawPage{
						{PageID: "broken", HTML: ""},
						{PageID: "kontakt", HTML: "<html/>"},
					}, nil
				},
			},
			Parser: &mock.Parser{
				ParseFn: func(pageID, _, _ string) (*orgkb.Document, error) {
					if pageID == "broken" {
						return nil, orgkb.Errorf(orgkb.EINVALID, "page contains no content")
					}
					return testDoc(pageID), nil
				},
			},
			Index:     testIndex(t),
			Knowledge: notFoundStore(&contacts, &facts, &chunks),
		}

		report, err := r.Run(context.Background())

		require.NoError(t, err)
		require.Len(t, report.Pages, 2)
		assert.Equal(t, 1, report.Failed)

		// Reports come back in input order.
		assert.Equal(t, "broken", report.Pages[0].PageID)
		require.NotEmpty(t, report.Pages[0].Errs)
		assert.Contains(t, report.Pages[0].Errs[0], "parse")

		assert.Equal(t, "kontakt", report.Pages[1].PageID)
		assert.Empty(t, report.Pages[1].Errs)
		assert.Equal(t, 2, report.Pages[1].Anchors)
		require.Len(t, contacts, 1)
	})

	t.Run("extraction outage for one procedure leaves the rest reconciled", func(t *testing.T) {
		t.Parallel()

		var contacts []orgkb.ContactFact
		var facts []orgkb.ProcedureFact
		var chunks []orgkb.Chunk
		var artifactWritten bool

		tagger, err := orgkb.NewTagger([]*orgkb.Procedure{
			{ID: "proc-dowod", Name: "Wydanie dowodu osobistego",
				Schema: orgkb.Schema{Fields: []orgkb.Field{{Name: "oplaty", Type: orgkb.FieldString}}}},
			{ID: "proc-meldunek", Name: "Zameldowanie na pobyt stały",
				Schema: orgkb.Schema{Fields: []orgkb.Field{{Name: "termin", Type: orgkb.FieldString}}}},
			{ID: "proc-zabudowa", Name: "Warunki zabudowy",
				Schema: orgkb.Schema{Fields: []orgkb.Field{{Name: "wymagane", Type: orgkb.FieldString}}}},
		}, nil, orgkb.DefaultTagConfig())
		require.NoError(t, err)

		doc := &orgkb.Document{
			PageID:    "sprawy",
			SourceURL: "https://gmina.pl/sprawy",
			Text:      "Sprawy\nWydanie dowodu osobistego\nZameldowanie na pobyt stały\nWarunki zabudowy\njan.kowalski@gmina.pl",
			RawHTML:   "<html><body><h1>Sprawy</h1></body></html>",
			Blocks: []orgkb.Block{
				{Index: 0, Parent: 0, Kind: orgkb.BlockHeading, HeadingLevel: 1, Span: orgkb.Span{Start: 0, End: 6}, Text: "Sprawy"},
				{Index: 1, Parent: 0, Kind: orgkb.BlockParagraph, Breadcrumbs: []string{"Sprawy"}, Span: orgkb.Span{Start: 7, End: 32}, Text: "Wydanie dowodu osobistego"},
				{Index: 2, Parent: 0, Kind: orgkb.BlockParagraph, Breadcrumbs: []string{"Sprawy"}, Span: orgkb.Span{Start: 33, End: 61}, Text: "Zameldowanie na pobyt stały"},
				{Index: 3, Parent: 0, Kind: orgkb.BlockParagraph, Breadcrumbs: []string{"Sprawy"}, Span: orgkb.Span{Start: 62, End: 78}, Text: "Warunki zabudowy"},
				{Index: 4, Parent: 0, Kind: orgkb.BlockParagraph, Breadcrumbs: []string{"Sprawy"}, Span: orgkb.Span{Start: 79, End: 100}, Text: "jan.kowalski@gmina.pl"},
			},
		}

		r := &pipeline.Runner{
			Source: &mock.PageSource{
				LoadPagesFn: func(_ context.Context) ([]*orgkb.RawPage, error) {
					return []*orgkb.RawPage{{PageID: "sprawy", HTML: "<html/>"}}, nil
				},
			},
			Parser: &mock.Parser{
				ParseFn: func(string, string, string) (*orgkb.Document, error) {
					return doc, nil
				},
			},
			Index:  testIndex(t),
			Tagger: tagger,
			Extractor: &mock.Extractor{
				ExtractStructuredFn: func(_ context.Context, schema orgkb.Schema, _ string) (map[string]string, error) {
					// Only the dowod schema hits the outage.
					if schema.Fields[0].Name == "oplaty" {
						return nil, orgkb.Errorf(orgkb.EUNAVAILABLE, "model overloaded")
					}
					return map[string]string{schema.Fields[0].Name: "wartość"}, nil
				},
			},
			Knowledge: notFoundStore(&contacts, &facts, &chunks),
			Artifacts: &mock.ArtifactWriter{
				WriteArtifactFn: func(_ context.Context, _ string, _ string) error {
					artifactWritten = true
					return nil
				},
			},
			RetryDelays: []time.Duration{0}, // no delay for tests
		}

		report, err := r.Run(context.Background())

		require.NoError(t, err)
		require.Len(t, report.Pages, 1)
		page := report.Pages[0]

		require.Len(t, page.Errs, 1)
		assert.Contains(t, page.Errs[0], "extract proc-dowod")
		assert.Equal(t, 1, page.Unresolved)

		// The two procedures the model could answer for still produce facts.
		require.Len(t, facts, 2)
		got := map[string]string{}
		for _, f := range facts {
			got[f.ProcedureID] = f.Field
		}
		assert.Equal(t, map[string]string{"proc-meldunek": "termin", "proc-zabudowa": "wymagane"}, got)

		// Contacts and the audit artifact do not depend on the model.
		require.Len(t, contacts, 1)
		assert.True(t, artifactWritten)
	})

	t.Run("rejects extraction output with unknown fields", func(t *testing.T) {
		t.Parallel()

		var contacts []orgkb.ContactFact
		var facts []orgkb.ProcedureFact
		var chunks []orgkb.Chunk

		r := &pipeline.Runner{
			Source: &mock.PageSource{
				LoadPagesFn: func(_ context.Context) ([]*orgkb.RawPage, error) {
					return []*orgkb.RawPage{{PageID: "kontakt", HTML: "<html/>"}}, nil
				},
			},
			Parser: &mock.Parser{
				ParseFn: func(pageID, _, _ string) (*orgkb.Document, error) {
					return testDoc(pageID), nil
				},
			},
			Index:  testIndex(t),
			Tagger: testTagger(t),
			Extractor: &mock.Extractor{
				ExtractStructuredFn: func(_ context.Context, _ orgkb.Schema, _ string) (map[string]string, error) {
					return map[string]string{"zmyslone_pole": "x"}, nil
				},
			},
			Knowledge:   notFoundStore(&contacts, &facts, &chunks),
			RetryDelays: []time.Duration{0},
		}

		report, err := r.Run(context.Background())

		require.NoError(t, err)
		require.Len(t, report.Pages, 1)
		require.NotEmpty(t, report.Pages[0].Errs)
		assert.Contains(t, strings.Join(report.Pages[0].Errs, "\n"), "unknown field")
		assert.Empty(t, facts)
	})

	t.Run("returns error when the source fails", func(t *testing.T) {
		t.Parallel()

		r := &pipeline.Runner{
			Source: &mock.PageSource{
				LoadPagesFn: func(_ context.Context) ([]*orgkb.RawPage, error) {
					return nil, orgkb.Errorf(orgkb.ENOTFOUND, "dump directory missing")
				},
			},
			Parser: &mock.Parser{},
			Index:  testIndex(t),
		}

		_, err := r.Run(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "load pages")
	})

	t.Run("stored conflict is reported, not overwritten", func(t *testing.T) {
		t.Parallel()

		var inserted bool
		store := &mock.KnowledgeService{
			ContactValueFn: func(_ context.Context, _ string, _ orgkb.AnchorType) (string, error) {
				return "stary.adres@gmina.pl", nil
			},
			InsertContactFn: func(_ context.Context, _ *orgkb.ContactFact) error {
				inserted = true
				return nil
			},
			ProcedureFactValueFn: func(_ context.Context, _, _ string) (string, error) {
				return "", orgkb.Errorf(orgkb.ENOTFOUND, "no fact")
			},
			CreateChunksFn: func(_ context.Context, _ string, _ []orgkb.Chunk) error {
				return nil
			},
		}

		r := &pipeline.Runner{
			Source: &mock.PageSource{
				LoadPagesFn: func(_ context.Context) ([]*orgkb.RawPage, error) {
					return []*orgkb.RawPage{{PageID: "kontakt", HTML: "<html/>"}}, nil
				},
			},
			Parser: &mock.Parser{
				ParseFn: func(pageID, _, _ string) (*orgkb.Document, error) {
					return testDoc(pageID), nil
				},
			},
			Index:     testIndex(t),
			Knowledge: store,
		}

		report, err := r.Run(context.Background())

		require.NoError(t, err)
		require.Len(t, report.Pages, 1)
		page := report.Pages[0]
		assert.Equal(t, 1, page.FactsConflicted)
		assert.Zero(t, page.FactsInserted)
		assert.False(t, inserted)
		require.Len(t, page.Conflicts, 1)
		assert.Equal(t, orgkb.ContactKey("per-1", orgkb.AnchorEmail), page.Conflicts[0].Key)
		assert.Equal(t, "stary.adres@gmina.pl", page.Conflicts[0].Prior)
	})
}
