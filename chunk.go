package orgkb

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Chunk is a section of a document sized for embedding and retrieval.
// EmbeddingText prefixes the content with the heading breadcrumbs so the
// vector carries section context.
type Chunk struct {
	ID            string    `json:"id"`
	PageID        string    `json:"pageId"`
	Block         int       `json:"block"`
	Span          Span      `json:"span"`
	Breadcrumbs   []string  `json:"breadcrumbs,omitempty"`
	Content       string    `json:"content"`
	EmbeddingText string    `json:"embeddingText"`
	Embedding     []float32 `json:"embedding,omitempty"`
	SourceURL     string    `json:"sourceUrl,omitempty"`
}

// Validate returns an error if the chunk contains invalid fields.
func (c *Chunk) Validate() error {
	if c.PageID == "" {
		return Errorf(EINVALID, "chunk page ID required")
	}
	if c.Content == "" {
		return Errorf(EINVALID, "chunk content required")
	}
	return nil
}

// ChunkID derives a stable chunk identifier from its page and span, so
// re-ingesting an unchanged page produces identical IDs.
func ChunkID(pageID string, span Span) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s|c|%d|%d", pageID, span.Start, span.End)
	return fmt.Sprintf("c-%016x", h.Sum64())
}

// ChunkConfig tunes chunk extraction.
type ChunkConfig struct {
	// MinWords is the floor for chunks outside a breadcrumb context.
	MinWords int

	// ShortParagraphWords is the size under which a paragraph is kept
	// whole instead of being split into sentences.
	ShortParagraphWords int

	// GenericHeadings are boilerplate section titles that never make
	// useful chunks on their own.
	GenericHeadings []string
}

// DefaultChunkConfig returns the chunking parameters used in production.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MinWords:            5,
		ShortParagraphWords: 20,
		GenericHeadings: []string{
			"Kontakt", "Menu", "Nawigacja", "Szukaj", "Mapa strony",
		},
	}
}

// sentenceRe splits on terminal punctuation followed by whitespace and
// an upper-case or digit start. An approximation of a trained sentence
// tokenizer, good enough for chunk boundaries.
var sentenceRe = regexp.MustCompile(`([.!?…])\s+(\p{Lu}|\d)`)

// ChunkDocument extracts embedding chunks from a parsed document. Each
// block yields zero or more chunks: list items and table rows pass
// whole, short paragraphs under a heading pass whole, longer prose is
// split into sentences. Fragments and boilerplate are filtered.
func ChunkDocument(doc *Document, cfg ChunkConfig) []Chunk {
	if cfg.MinWords == 0 {
		cfg.MinWords = 5
	}
	if cfg.ShortParagraphWords == 0 {
		cfg.ShortParagraphWords = 20
	}

	var out []Chunk
	for bi := range doc.Blocks {
		block := &doc.Blocks[bi]
		switch block.Kind {
		case BlockHeading:
			// Headings live in breadcrumbs, not chunks.
		case BlockListItem, BlockTableRow:
			if c, ok := makeChunk(doc, bi, block.Text, block.Span, 3, cfg); ok {
				out = append(out, c)
			}
		case BlockParagraph:
			words := len(strings.Fields(block.Text))
			if words <= cfg.ShortParagraphWords && len(block.Breadcrumbs) > 0 {
				if c, ok := makeChunk(doc, bi, block.Text, block.Span, 3, cfg); ok {
					out = append(out, c)
				}
				continue
			}
			min := cfg.MinWords
			if len(block.Breadcrumbs) > 0 {
				min = 5
			}
			for _, sent := range splitSentences(block.Text, block.Span) {
				if isFragment(sent.text) {
					continue
				}
				if c, ok := makeChunk(doc, bi, sent.text, sent.span, min, cfg); ok {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

func makeChunk(doc *Document, bi int, content string, span Span, minWords int, cfg ChunkConfig) (Chunk, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Chunk{}, false
	}
	if len(strings.Fields(content)) < minWords {
		return Chunk{}, false
	}
	for _, h := range cfg.GenericHeadings {
		if strings.EqualFold(content, h) {
			return Chunk{}, false
		}
	}

	block := &doc.Blocks[bi]
	return Chunk{
		ID:            ChunkID(doc.PageID, span),
		PageID:        doc.PageID,
		Block:         bi,
		Span:          span,
		Breadcrumbs:   append([]string(nil), block.Breadcrumbs...),
		Content:       content,
		EmbeddingText: embeddingText(block.Breadcrumbs, content),
		SourceURL:     doc.SourceURL,
	}, true
}

func embeddingText(breadcrumbs []string, content string) string {
	if len(breadcrumbs) == 0 {
		return content
	}
	return strings.Join(breadcrumbs, " - ") + " - " + content
}

type sentence struct {
	text string
	span Span
}

// splitSentences cuts text at sentence boundaries, reporting each
// sentence's span in document coordinates. blockSpan anchors the text
// within the document.
func splitSentences(text string, blockSpan Span) []sentence {
	var out []sentence
	start := 0
	for {
		loc := sentenceRe.FindStringSubmatchIndex(text[start:])
		if loc == nil {
			break
		}
		// Cut after the terminal punctuation, before the whitespace.
		cut := start + loc[3]
		out = append(out, sentence{
			text: strings.TrimSpace(text[start:cut]),
			span: Span{Start: blockSpan.Start + start, End: blockSpan.Start + cut},
		})
		start = start + loc[4] // next sentence begins at the capital
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, sentence{
			text: rest,
			span: Span{Start: blockSpan.Start + start, End: blockSpan.Start + len(text)},
		})
	}
	return out
}

// isFragment reports whether text looks like a sentence fragment: it
// starts lower case, or is very short without terminal punctuation.
func isFragment(text string) bool {
	if text == "" {
		return true
	}
	for _, r := range text {
		if unicode.IsLower(r) {
			return true
		}
		break
	}
	if len(strings.Fields(text)) <= 3 && !strings.HasSuffix(strings.TrimRight(text, " "), ".") &&
		!strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") && !strings.HasSuffix(text, ":") {
		return true
	}
	return false
}
