package orgkb_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgkb/orgkb"
)

func TestChunkDocument(t *testing.T) {
	t.Parallel()

	t.Run("list items pass whole with section context", func(t *testing.T) {
		t.Parallel()

		doc := buildDoc("wymagane-dokumenty",
			heading(2, "Wymagane dokumenty"),
			listItem("wniosek o wydanie dowodu osobistego"),
			listItem("jedna fotografia"),
		)
		chunks := orgkb.ChunkDocument(doc, orgkb.DefaultChunkConfig())
		require.Len(t, chunks, 1)

		c := chunks[0]
		assert.Equal(t, "wniosek o wydanie dowodu osobistego", c.Content)
		assert.Equal(t, 1, c.Block)
		assert.Equal(t, []string{"Wymagane dokumenty"}, c.Breadcrumbs)
		assert.Equal(t, "Wymagane dokumenty - wniosek o wydanie dowodu osobistego", c.EmbeddingText)
		assert.Equal(t, doc.Blocks[1].Span, c.Span)
		assert.Equal(t, orgkb.ChunkID(doc.PageID, c.Span), c.ID)
		assert.Equal(t, doc.SourceURL, c.SourceURL)
	})

	t.Run("table rows pass whole", func(t *testing.T) {
		t.Parallel()

		doc := buildDoc("oplaty",
			heading(2, "Opłaty"),
			blockSpec{kind: orgkb.BlockTableRow, text: "Opłata skarbowa 17 zł"},
		)
		chunks := orgkb.ChunkDocument(doc, orgkb.DefaultChunkConfig())
		require.Len(t, chunks, 1)
		assert.Equal(t, "Opłata skarbowa 17 zł", chunks[0].Content)
	})

	t.Run("short paragraph under a heading stays whole", func(t *testing.T) {
		t.Parallel()

		doc := buildDoc("terminy",
			heading(2, "Terminy"),
			para("Dowód osobisty odbiera się po 30 dniach."),
		)
		chunks := orgkb.ChunkDocument(doc, orgkb.DefaultChunkConfig())
		require.Len(t, chunks, 1)
		assert.Equal(t, "Dowód osobisty odbiera się po 30 dniach.", chunks[0].Content)
		assert.Equal(t, []string{"Terminy"}, chunks[0].Breadcrumbs)
	})

	t.Run("prose without a heading splits into sentences", func(t *testing.T) {
		t.Parallel()

		doc := buildDoc("wniosek",
			para("Wniosek składa się w urzędzie gminy osobiście. Opłata skarbowa wynosi siedemnaście złotych polskich."),
		)
		chunks := orgkb.ChunkDocument(doc, orgkb.DefaultChunkConfig())
		require.Len(t, chunks, 2)

		assert.Equal(t, "Wniosek składa się w urzędzie gminy osobiście.", chunks[0].Content)
		assert.Equal(t, "Opłata skarbowa wynosi siedemnaście złotych polskich.", chunks[1].Content)
		for _, c := range chunks {
			assert.Equal(t, c.Content, strings.TrimSpace(doc.Text[c.Span.Start:c.Span.End]))
			assert.Empty(t, c.Breadcrumbs)
			assert.Equal(t, c.Content, c.EmbeddingText)
		}
	})

	t.Run("fragments are filtered", func(t *testing.T) {
		t.Parallel()

		doc := buildDoc("stopka",
			para("numer konta bankowego urzędu gminy"),
		)
		assert.Empty(t, orgkb.ChunkDocument(doc, orgkb.DefaultChunkConfig()))
	})

	t.Run("boilerplate content is filtered", func(t *testing.T) {
		t.Parallel()

		cfg := orgkb.DefaultChunkConfig()
		cfg.GenericHeadings = append(cfg.GenericHeadings, "Godziny otwarcia urzędu")

		doc := buildDoc("menu",
			heading(2, "Nawigacja"),
			listItem("Godziny otwarcia urzędu"),
		)
		assert.Empty(t, orgkb.ChunkDocument(doc, cfg))
	})

	t.Run("headings never chunk", func(t *testing.T) {
		t.Parallel()

		doc := buildDoc("naglowki",
			heading(1, "Wydanie dowodu osobistego krok po kroku"),
		)
		assert.Empty(t, orgkb.ChunkDocument(doc, orgkb.DefaultChunkConfig()))
	})

	t.Run("chunk IDs are stable across runs", func(t *testing.T) {
		t.Parallel()

		doc := buildDoc("wymagane-dokumenty",
			heading(2, "Wymagane dokumenty"),
			listItem("wniosek o wydanie dowodu osobistego"),
			para("Dowód osobisty odbiera się po 30 dniach."),
		)
		first := orgkb.ChunkDocument(doc, orgkb.DefaultChunkConfig())
		second := orgkb.ChunkDocument(doc, orgkb.DefaultChunkConfig())
		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
	})
}
