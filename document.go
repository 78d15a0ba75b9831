package orgkb

import "context"

// Span is a half-open [Start, End) byte range into a Document's Text.
// Offsets are stable for a given parse: parsing the same HTML twice
// yields byte-identical text and therefore identical spans.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether o lies fully inside s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// BlockKind classifies a structural block in a parsed document.
type BlockKind string

// Block kinds produced by the parser.
const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockListItem  BlockKind = "list_item"
	BlockTableRow  BlockKind = "table_row"
)

// Block is one structural node in the flat block arena of a Document.
// Content blocks point at the innermost heading above them via Parent,
// so boundary walks are index arithmetic rather than pointer chasing.
type Block struct {
	Index        int       `json:"index"`
	Parent       int       `json:"parent"` // index of the governing heading block, -1 if none
	Kind         BlockKind `json:"kind"`
	HeadingLevel int       `json:"headingLevel,omitempty"` // 1-6 for headings, 0 otherwise
	Breadcrumbs  []string  `json:"breadcrumbs,omitempty"`  // heading path above this block
	Span         Span      `json:"span"`                   // span within Document.Text
	Text         string    `json:"text"`
	Links        []Link    `json:"links,omitempty"`
}

// BreadcrumbKey returns the breadcrumb path joined for grouping.
func (b *Block) BreadcrumbKey() string {
	if len(b.Breadcrumbs) == 0 {
		return "__no_heading__"
	}
	key := b.Breadcrumbs[0]
	for _, c := range b.Breadcrumbs[1:] {
		key += "::" + c
	}
	return key
}

// Link is an anchor href found inside a block, with the span of its
// visible text. mailto: and tel: links carry contact data that the
// scanner treats as higher-trust than free text.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
	Span Span   `json:"span"`
}

// Document is a parsed HTML page: the page's normalized plain text plus
// a flat arena of structural blocks with spans into that text. It is
// immutable after parsing; all pipeline stages share it read-only.
type Document struct {
	PageID      string  `json:"pageId"`
	SourceURL   string  `json:"sourceUrl"`
	ContentHash string  `json:"contentHash"`
	Text        string  `json:"text"`
	Blocks      []Block `json:"blocks"`
	RawHTML     string  `json:"-"`
}

// BlockAt returns the index of the block containing the span, or -1.
// Blocks never overlap, so the first containing block is the only one.
func (d *Document) BlockAt(span Span) int {
	for i := range d.Blocks {
		if d.Blocks[i].Span.Contains(span) {
			return i
		}
	}
	return -1
}

// Parser parses raw HTML into a Document.
type Parser interface {
	// Parse builds the block arena for a page. Returns EINVALID if the
	// HTML cannot be parsed or contains no content.
	Parse(pageID, sourceURL, html string) (*Document, error)
}

// RawPage is an unparsed HTML page handed to the pipeline.
type RawPage struct {
	PageID    string
	SourceURL string
	HTML      string
}

// PageSource supplies raw pages to a pipeline run.
type PageSource interface {
	LoadPages(ctx context.Context) ([]*RawPage, error)
}

// ArtifactWriter persists per-page audit artifacts.
type ArtifactWriter interface {
	WriteArtifact(ctx context.Context, pageID string, html string) error
}

// Converter converts HTML to Markdown. The pipeline uses it to build
// the whole-page context window handed to structured extraction.
type Converter interface {
	Convert(html string) (string, error)
}
