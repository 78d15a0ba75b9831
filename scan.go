package orgkb

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// emailRe matches email addresses in free text.
var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// phoneRe matches phone-like digit runs including separators, e.g.
// "+48 58 347 12 34" or "583-471-234". Candidates are validated by
// NormalizePhone before becoming anchors.
var phoneRe = regexp.MustCompile(`\+?\d[\d \-\x{00a0}().]{6,}\d`)

// ScanConfig tunes the anchor detectors.
type ScanConfig struct {
	// EmailDomain restricts the email detector to addresses with this
	// suffix (e.g. "org.edu"). Empty accepts any domain.
	EmailDomain string

	// MaxNameWindow bounds the sliding token window of the name
	// detector. Zero means min(4, longest indexed name).
	MaxNameWindow int
}

// Scanner walks a parsed document and emits anchor candidates for every
// span that matches a reference pattern. Scanning is idempotent: the
// same document and index always yield the same anchors, IDs included.
type Scanner struct {
	index *Index
	cfg   ScanConfig
}

// NewScanner creates a Scanner over a built reference index.
func NewScanner(index *Index, cfg ScanConfig) *Scanner {
	return &Scanner{index: index, cfg: cfg}
}

// Scan returns all anchors in document order. Overlapping anchors of
// different types are all kept; overlapping name anchors keep only the
// longest match. Returns ENOTBUILT if the index was never built.
func (s *Scanner) Scan(doc *Document) ([]Anchor, error) {
	if !s.index.Built() {
		return nil, Errorf(ENOTBUILT, "reference index not built")
	}

	var anchors []Anchor
	for bi := range doc.Blocks {
		block := &doc.Blocks[bi]

		first := len(anchors)
		linkSpans := s.scanLinks(doc, block, &anchors)
		s.scanEmails(doc, block, linkSpans, &anchors)
		s.scanPhones(doc, block, linkSpans, &anchors)

		// Contact anchor spans are off limits for the name detector: the
		// local part of an email would otherwise read as a name mention.
		covered := append([]Span(nil), linkSpans...)
		for _, a := range anchors[first:] {
			covered = append(covered, a.Span)
		}
		if err := s.scanNames(doc, block, covered, &anchors); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(anchors, func(i, j int) bool {
		if anchors[i].Span.Start != anchors[j].Span.Start {
			return anchors[i].Span.Start < anchors[j].Span.Start
		}
		if anchors[i].Span.End != anchors[j].Span.End {
			return anchors[i].Span.End > anchors[j].Span.End
		}
		return anchors[i].Type < anchors[j].Type
	})
	return anchors, nil
}

// scanLinks extracts contact anchors from mailto: and tel: hrefs and
// returns the link text spans so the free-text detectors skip them.
func (s *Scanner) scanLinks(doc *Document, block *Block, out *[]Anchor) []Span {
	var covered []Span
	for _, link := range block.Links {
		href := strings.TrimSpace(link.Href)
		switch {
		case strings.HasPrefix(strings.ToLower(href), "mailto:"):
			addr := NormalizeEmail(href[len("mailto:"):])
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if !s.emailAllowed(addr) {
				continue
			}
			covered = append(covered, link.Span)
			*out = append(*out, s.emailAnchor(doc, link.Span, addr, "det:mailto"))

		case strings.HasPrefix(strings.ToLower(href), "tel:"):
			nsn, ok := NormalizePhone(href[len("tel:"):])
			if !ok {
				continue
			}
			covered = append(covered, link.Span)
			*out = append(*out, s.phoneAnchor(doc, link.Span, nsn, "det:telhref"))
		}
	}
	return covered
}

func (s *Scanner) scanEmails(doc *Document, block *Block, skip []Span, out *[]Anchor) {
	for _, loc := range emailRe.FindAllStringIndex(block.Text, -1) {
		span := Span{Start: block.Span.Start + loc[0], End: block.Span.Start + loc[1]}
		if overlapsAny(span, skip) {
			continue
		}
		addr := NormalizeEmail(block.Text[loc[0]:loc[1]])
		if !s.emailAllowed(addr) {
			continue
		}
		*out = append(*out, s.emailAnchor(doc, span, addr, "det:text"))
	}
}

func (s *Scanner) scanPhones(doc *Document, block *Block, skip []Span, out *[]Anchor) {
	for _, loc := range phoneRe.FindAllStringIndex(block.Text, -1) {
		span := Span{Start: block.Span.Start + loc[0], End: block.Span.Start + loc[1]}
		if overlapsAny(span, skip) {
			continue
		}
		nsn, ok := NormalizePhone(block.Text[loc[0]:loc[1]])
		if !ok {
			continue
		}
		*out = append(*out, s.phoneAnchor(doc, span, nsn, "det:text"))
	}
}

// scanNames slides token windows over the folded block text, longest
// window first, so "jan kowalski" wins over a bare "kowalski" at the
// same offset.
func (s *Scanner) scanNames(doc *Document, block *Block, skip []Span, out *[]Anchor) error {
	folded, foldMap := FoldWithMap(block.Text)
	toks := tokenize(folded)
	if len(toks) == 0 {
		return nil
	}

	maxWin := s.cfg.MaxNameWindow
	if maxWin <= 0 {
		maxWin = 4
		if m := s.index.MaxNameTokens(); m < maxWin {
			maxWin = m
		}
	}

	consumed := make([]bool, len(toks))
	for win := maxWin; win >= 1; win-- {
		for i := 0; i+win <= len(toks); i++ {
			if anyConsumed(consumed[i : i+win]) {
				continue
			}

			key := joinTokens(toks[i : i+win])
			if !s.index.MightContainName(key) {
				continue
			}
			matches, err := s.index.LookupName(key)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				continue
			}

			span := OrigSpan(block.Text, foldMap, toks[i].start, toks[i+win-1].end)
			span.Start += block.Span.Start
			span.End += block.Span.Start
			if overlapsAny(span, skip) {
				continue
			}

			a := Anchor{
				ID:         AnchorID(doc.PageID, AnchorName, span),
				Type:       AnchorName,
				Span:       span,
				Block:      block.Index,
				Text:       doc.Text[span.Start:span.End],
				Value:      key,
				Candidates: matches,
				Confidence: matches[0].Strength,
				Source:     "det:text",
			}
			if id, ok := soleTopCandidate(matches); ok {
				a.EntityID = id
			}
			*out = append(*out, a)

			for k := i; k < i+win; k++ {
				consumed[k] = true
			}
		}
	}
	return nil
}

func (s *Scanner) emailAllowed(addr string) bool {
	return s.cfg.EmailDomain == "" || strings.HasSuffix(addr, s.cfg.EmailDomain)
}

func (s *Scanner) emailAnchor(doc *Document, span Span, addr, source string) Anchor {
	a := Anchor{
		ID:         AnchorID(doc.PageID, AnchorEmail, span),
		Type:       AnchorEmail,
		Span:       span,
		Block:      doc.BlockAt(span),
		Text:       doc.Text[span.Start:span.End],
		Value:      addr,
		Confidence: 1.0,
		Source:     source,
	}
	if id, err := s.index.LookupEmail(addr); err == nil {
		a.EntityID = id
	}
	return a
}

func (s *Scanner) phoneAnchor(doc *Document, span Span, nsn, source string) Anchor {
	a := Anchor{
		ID:         AnchorID(doc.PageID, AnchorPhone, span),
		Type:       AnchorPhone,
		Span:       span,
		Block:      doc.BlockAt(span),
		Text:       doc.Text[span.Start:span.End],
		Value:      nsn,
		Confidence: 1.0,
		Source:     source,
	}
	if id, err := s.index.LookupPhone(nsn); err == nil {
		a.EntityID = id
	}
	return a
}

// soleTopCandidate returns the entity ID when exactly one candidate has
// the top strength. Homonyms stay unresolved for the filter to judge.
func soleTopCandidate(matches []NameMatch) (string, bool) {
	if len(matches) == 0 {
		return "", false
	}
	if len(matches) > 1 && matches[1].Strength == matches[0].Strength {
		return "", false
	}
	return matches[0].EntityID, true
}

type token struct {
	text  string
	start int // byte offset in folded text
	end   int
}

// tokenize splits folded text into letter/digit runs with offsets.
func tokenize(s string) []token {
	var toks []token
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			toks = append(toks, token{text: s[start:i], start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		toks = append(toks, token{text: s[start:], start: start, end: len(s)})
	}
	return toks
}

func joinTokens(toks []token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}

func anyConsumed(window []bool) bool {
	for _, c := range window {
		if c {
			return true
		}
	}
	return false
}

func overlapsAny(span Span, spans []Span) bool {
	for _, s := range spans {
		if span.Overlaps(s) {
			return true
		}
	}
	return false
}
