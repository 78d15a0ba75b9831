package orgkb

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ColorScheme is the three-tone palette for one entity in the audit
// view: anchors get the strong tone, region blocks the pale one.
type ColorScheme struct {
	Anchor string
	Seed   string
	Region string
}

var colorSchemes = []ColorScheme{
	{"#ffd54f", "#ffe082", "#fff8e1"},
	{"#81d4fa", "#b3e5fc", "#e1f5fe"},
	{"#a5d6a7", "#c8e6c9", "#e8f5e9"},
	{"#f48fb1", "#f8bbd0", "#fce4ec"},
	{"#b39ddb", "#d1c4e9", "#ede7f6"},
	{"#ffab91", "#ffccbc", "#fbe9e7"},
	{"#80cbc4", "#b2dfdb", "#e0f2f1"},
	{"#bcaaa4", "#d7ccc8", "#efebe9"},
}

var colorFallback = ColorScheme{"#e0e0e0", "#eeeeee", "#f5f5f5"}

// SchemeFor returns a stable color scheme for an entity. The same
// entity maps to the same colors across pages and runs.
func SchemeFor(entityID string) ColorScheme {
	if entityID == "" {
		return colorFallback
	}
	return colorSchemes[xxhash.Sum64String(entityID)%uint64(len(colorSchemes))]
}

// Legend summarizes what the audit view shows.
type Legend struct {
	Anchors    int `json:"anchors"`
	Regions    int `json:"regions"`
	Dropped    int `json:"dropped"`
	Ambiguous  int `json:"ambiguous"`
	Candidates int `json:"candidates"`
}

// Annotate renders the audit view for one page: the document text with
// every anchor wrapped in a data-annot span, region blocks tinted with
// the owning entity's colors, and dropped or ambiguous anchors badged
// with their reason. Nothing the scanner found is omitted, which is
// the point: a reviewer can see every decision the pipeline made.
func Annotate(doc *Document, anchors []Anchor, regions []Region, verdicts []Classification, cands []ProcedureCandidate) string {
	verdictOf := make(map[string]Classification, len(verdicts))
	for _, c := range verdicts {
		verdictOf[c.TargetID] = c
	}
	regionOf := make(map[int]*Region) // block index -> region
	for i := range regions {
		for _, b := range regions[i].Blocks {
			regionOf[b] = &regions[i]
		}
	}

	var legend Legend
	legend.Anchors = len(anchors)
	legend.Regions = len(regions)
	legend.Candidates = len(cands)
	for _, c := range verdicts {
		switch c.Verdict {
		case VerdictDropped:
			legend.Dropped++
		case VerdictAmbiguous:
			legend.Ambiguous++
		}
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>audit %s</title>\n", html.EscapeString(doc.PageID))
	b.WriteString("<style>\n")
	b.WriteString("body{font-family:sans-serif;max-width:60em;margin:1em auto;line-height:1.5}\n")
	b.WriteString("span[data-annot]{padding:0 2px;border-radius:3px}\n")
	b.WriteString(".block{padding:2px 6px;margin:2px 0}\n")
	b.WriteString(".badge{font-size:0.7em;vertical-align:super;border:1px solid #999;border-radius:3px;padding:0 2px;margin-left:2px;background:#fff}\n")
	b.WriteString(".legend{border:1px solid #ccc;padding:0.5em 1em;margin-bottom:1em;background:#fafafa}\n")
	b.WriteString("</style></head><body>\n")

	fmt.Fprintf(&b, "<div class=\"legend\"><strong>%s</strong>", html.EscapeString(doc.SourceURL))
	fmt.Fprintf(&b, " &middot; anchors %d &middot; regions %d &middot; dropped %d &middot; ambiguous %d &middot; procedures %d</div>\n",
		legend.Anchors, legend.Regions, legend.Dropped, legend.Ambiguous, legend.Candidates)

	for bi := range doc.Blocks {
		block := &doc.Blocks[bi]
		style := ""
		if reg := regionOf[bi]; reg != nil {
			scheme := SchemeFor(reg.EntityID)
			style = fmt.Sprintf(" style=\"background:%s\" data-region=\"%s\"", scheme.Region, html.EscapeString(reg.ID))
		}
		tag := "div"
		if block.Kind == BlockHeading {
			tag = fmt.Sprintf("h%d", clampHeading(block.HeadingLevel))
		}
		fmt.Fprintf(&b, "<%s class=\"block\"%s>", tag, style)
		writeBlockText(&b, block, anchors, verdictOf)
		fmt.Fprintf(&b, "</%s>\n", tag)
	}

	b.WriteString("</body></html>\n")
	return b.String()
}

func clampHeading(level int) int {
	if level < 1 {
		return 2
	}
	if level > 6 {
		return 6
	}
	return level
}

// writeBlockText emits the block's text with anchor spans wrapped.
// Anchor spans inside one block never overlap, so a single left-to-
// right pass suffices.
func writeBlockText(b *strings.Builder, block *Block, anchors []Anchor, verdictOf map[string]Classification) {
	var local []*Anchor
	for i := range anchors {
		if anchors[i].Block == block.Index && block.Span.Contains(anchors[i].Span) {
			local = append(local, &anchors[i])
		}
	}
	sort.Slice(local, func(i, j int) bool { return local[i].Span.Start < local[j].Span.Start })

	pos := block.Span.Start
	for _, a := range local {
		if a.Span.Start < pos {
			continue // overlap, already covered
		}
		b.WriteString(html.EscapeString(block.Text[pos-block.Span.Start : a.Span.Start-block.Span.Start]))
		writeAnchorSpan(b, block, a, verdictOf[a.ID])
		pos = a.Span.End
	}
	b.WriteString(html.EscapeString(block.Text[pos-block.Span.Start:]))
}

func writeAnchorSpan(b *strings.Builder, block *Block, a *Anchor, c Classification) {
	scheme := SchemeFor(a.EntityID)
	text := block.Text[a.Span.Start-block.Span.Start : a.Span.End-block.Span.Start]
	fmt.Fprintf(b, "<span data-annot=\"%s\" data-anchor=\"%s\"", a.Type, html.EscapeString(a.ID))
	if a.EntityID != "" {
		fmt.Fprintf(b, " data-entity=\"%s\"", html.EscapeString(a.EntityID))
	}
	fmt.Fprintf(b, " style=\"background:%s\" title=\"%s conf=%.2f\">", scheme.Anchor, a.Type, a.Confidence)
	b.WriteString(html.EscapeString(text))
	b.WriteString("</span>")

	switch c.Verdict {
	case VerdictDropped:
		fmt.Fprintf(b, "<sup class=\"badge\" title=\"%s\">&#10007;</sup>", html.EscapeString(c.Reason))
	case VerdictAmbiguous:
		fmt.Fprintf(b, "<sup class=\"badge\" title=\"%s\">?</sup>", html.EscapeString(c.Reason))
	}
}
