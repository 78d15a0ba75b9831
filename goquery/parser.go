// Package goquery implements HTML parsing using the goquery library.
package goquery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
	"github.com/orgkb/orgkb"
	"golang.org/x/net/html"
)

// Parser converts raw HTML into a block-structured document. It walks
// the DOM in document order keeping a stack of ancestor headings, so
// every content block carries its breadcrumb path. Block texts are
// concatenated into the document text arena with recorded spans, which
// every later stage addresses into.
type Parser struct{}

// NewParser returns a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

var _ orgkb.Parser = (*Parser)(nil)

var wsRe = regexp.MustCompile(`\s+`)

// Parse parses raw HTML into a Document.
func (p *Parser) Parse(pageID, sourceURL, rawHTML string) (*orgkb.Document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, orgkb.Errorf(orgkb.EINVALID, "failed to parse HTML: %v", err)
	}

	doc := &orgkb.Document{
		PageID:      pageID,
		SourceURL:   sourceURL,
		ContentHash: fmt.Sprintf("%016x", xxhash.Sum64String(rawHTML)),
		RawHTML:     rawHTML,
	}

	w := &walker{doc: doc}

	// The page h1 often sits outside the main content element. Seed the
	// heading stack with it so early blocks still get a breadcrumb.
	root := contentRoot(gq)
	if h1 := gq.Find("h1").First(); h1.Length() > 0 && !containsSelection(root, h1) {
		if text := cleanText(h1.Text()); text != "" {
			w.stack = append(w.stack, heading{level: 1, text: text, block: -1})
		}
	}

	for _, n := range root.Nodes {
		w.walk(n)
	}

	// Pages with no recognizable structure still yield one block so the
	// scanner sees their text.
	if len(doc.Blocks) == 0 {
		if text := cleanText(root.Text()); text != "" {
			w.addBlock(orgkb.BlockParagraph, 0, text, nil)
		}
	}
	if len(doc.Blocks) == 0 {
		return nil, orgkb.Errorf(orgkb.EINVALID, "page %s contains no content", pageID)
	}

	return doc, nil
}

// contentRoot picks the main content element: main, then article, then
// body, then the whole document.
func contentRoot(gq *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"main", "article", "body"} {
		if s := gq.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return gq.Selection
}

func containsSelection(outer, inner *goquery.Selection) bool {
	if len(outer.Nodes) == 0 || len(inner.Nodes) == 0 {
		return false
	}
	for n := inner.Nodes[0]; n != nil; n = n.Parent {
		if n == outer.Nodes[0] {
			return true
		}
	}
	return false
}

type heading struct {
	level int
	text  string
	block int // index of the heading's own block, -1 if seeded
}

type walker struct {
	doc   *orgkb.Document
	stack []heading
}

func (w *walker) push(level int, text string, block int) {
	for len(w.stack) > 0 && w.stack[len(w.stack)-1].level >= level {
		w.stack = w.stack[:len(w.stack)-1]
	}
	w.stack = append(w.stack, heading{level: level, text: text, block: block})
}

func (w *walker) breadcrumbs() []string {
	if len(w.stack) == 0 {
		return nil
	}
	out := make([]string, len(w.stack))
	for i, h := range w.stack {
		out[i] = h.text
	}
	return out
}

// parent returns the block index of the innermost heading, or -1.
func (w *walker) parent() int {
	if len(w.stack) == 0 {
		return -1
	}
	return w.stack[len(w.stack)-1].block
}

// walk processes an element in document order. Headings update the
// stack and become blocks; paragraphs, list items, table rows, and divs
// with direct text become content blocks; everything else recurses.
func (w *walker) walk(n *html.Node) {
	if n.Type != html.ElementNode {
		return
	}

	switch n.Data {
	case "script", "style", "noscript", "template":
		return

	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		text := cleanText(nodeText(n))
		if text == "" {
			return
		}
		// Pop first so the heading block records the breadcrumbs of its
		// ancestors, not its siblings.
		for len(w.stack) > 0 && w.stack[len(w.stack)-1].level >= level {
			w.stack = w.stack[:len(w.stack)-1]
		}
		bi := w.addBlock(orgkb.BlockHeading, level, text, n)
		w.stack = append(w.stack, heading{level: level, text: text, block: bi})

	case "ul", "ol":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "li" {
				if text := cleanText(nodeText(c)); text != "" {
					w.addBlock(orgkb.BlockListItem, 0, text, c)
				}
			}
		}

	case "table":
		for _, tr := range findAll(n, "tr") {
			var cells []string
			for _, cell := range findAll(tr, "td", "th") {
				if t := cleanText(nodeText(cell)); t != "" {
					cells = append(cells, t)
				}
			}
			if len(cells) > 0 {
				w.addBlock(orgkb.BlockTableRow, 0, strings.Join(cells, " | "), tr)
			}
		}

	case "p":
		if text := cleanText(nodeText(n)); text != "" {
			w.addBlock(orgkb.BlockParagraph, 0, text, n)
		}

	case "div":
		// A div with its own text node is treated as a paragraph;
		// otherwise it is just a container.
		if hasDirectText(n) {
			if text := cleanText(nodeText(n)); text != "" {
				w.addBlock(orgkb.BlockParagraph, 0, text, n)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}

	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
	}
}

// addBlock appends a block to the document, extending the text arena,
// and returns its index. node may be nil for synthetic blocks.
func (w *walker) addBlock(kind orgkb.BlockKind, level int, text string, node *html.Node) int {
	doc := w.doc
	start := len(doc.Text)
	if start > 0 {
		doc.Text += "\n"
		start++
	}
	doc.Text += text
	span := orgkb.Span{Start: start, End: start + len(text)}

	bi := len(doc.Blocks)
	parent := w.parent()
	if kind == orgkb.BlockHeading {
		parent = bi
	}

	block := orgkb.Block{
		Index:        bi,
		Parent:       parent,
		Kind:         kind,
		HeadingLevel: level,
		Breadcrumbs:  w.breadcrumbs(),
		Span:         span,
		Text:         text,
	}
	if node != nil {
		block.Links = collectLinks(node, text, span)
	}
	doc.Blocks = append(doc.Blocks, block)
	return bi
}

// collectLinks finds anchors inside the block's subtree and locates
// their text within the block text. Spans are document coordinates.
func collectLinks(n *html.Node, blockText string, blockSpan orgkb.Span) []orgkb.Link {
	var links []orgkb.Link
	searchFrom := 0
	for _, a := range findAll(n, "a") {
		href := attr(a, "href")
		if href == "" {
			continue
		}
		text := cleanText(nodeText(a))
		span := orgkb.Span{Start: blockSpan.Start, End: blockSpan.Start}
		if text != "" {
			if rel := strings.Index(blockText[searchFrom:], text); rel >= 0 {
				start := searchFrom + rel
				span = orgkb.Span{
					Start: blockSpan.Start + start,
					End:   blockSpan.Start + start + len(text),
				}
				searchFrom = start + len(text)
			}
		}
		links = append(links, orgkb.Link{Href: href, Text: text, Span: span})
	}
	return links
}

// nodeText concatenates the text nodes under n with space separators,
// skipping script and style content.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "br":
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func hasDirectText(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}

func findAll(n *html.Node, names ...string) []*html.Node {
	var out []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, name := range names {
				if n.Data == name {
					out = append(out, n)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visit(c)
	}
	return out
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}
