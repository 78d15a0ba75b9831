package orgkb

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TagConfig tunes procedure matching thresholds.
type TagConfig struct {
	// FuzzyThreshold is the minimum token set ratio for a fuzzy match.
	FuzzyThreshold float64

	// EmbedThreshold is the minimum cosine similarity for an embedding
	// match against a catalog description vector.
	EmbedThreshold float64
}

// DefaultTagConfig returns the thresholds used in production.
func DefaultTagConfig() TagConfig {
	return TagConfig{
		FuzzyThreshold: 0.85,
		EmbedThreshold: 0.80,
	}
}

type foldedAlias struct {
	procID string
	alias  string // folded form
	score  float64
}

// Tagger locates mentions of catalog procedures in a document. Matching
// runs in three tiers: exact alias hits, fuzzy token overlap on blocks
// without an exact hit, and embedding similarity over chunk vectors.
type Tagger struct {
	procs    []*Procedure
	byID     map[string]*Procedure
	aliases  []foldedAlias
	embedder Embedder
	cfg      TagConfig
}

// NewTagger builds a tagger over the given catalog. The embedder may be
// nil, which disables the embedding tier.
func NewTagger(procs []*Procedure, embedder Embedder, cfg TagConfig) (*Tagger, error) {
	t := &Tagger{
		procs:    procs,
		byID:     make(map[string]*Procedure, len(procs)),
		embedder: embedder,
		cfg:      cfg,
	}
	for _, p := range procs {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := t.byID[p.ID]; ok {
			return nil, Errorf(EINVALID, "duplicate procedure ID %q", p.ID)
		}
		t.byID[p.ID] = p
		for _, a := range aliasForms(p) {
			folded := FoldKey(a)
			if folded == "" {
				continue
			}
			t.aliases = append(t.aliases, foldedAlias{procID: p.ID, alias: folded, score: 1.0})
		}
	}
	// Longest aliases first so "decyzja o warunkach zabudowy" wins over
	// "warunki zabudowy" on the same span.
	sort.SliceStable(t.aliases, func(i, j int) bool {
		return len(t.aliases[i].alias) > len(t.aliases[j].alias)
	})
	return t, nil
}

func aliasForms(p *Procedure) []string {
	forms := make([]string, 0, 1+len(p.Aliases)+len(p.Acronyms))
	forms = append(forms, p.Name)
	forms = append(forms, p.Aliases...)
	forms = append(forms, p.Acronyms...)
	return forms
}

// Procedure returns the catalog entry for id, or nil.
func (t *Tagger) Procedure(id string) *Procedure {
	return t.byID[id]
}

// Tag scans the document and returns procedure candidates. Embedding
// failures degrade gracefully: the rule and fuzzy tiers still return
// their candidates alongside the error.
func (t *Tagger) Tag(ctx context.Context, doc *Document, chunks []Chunk) ([]ProcedureCandidate, error) {
	var out []ProcedureCandidate

	// Tier 1: exact alias matches with word boundaries, per block.
	ruleHit := make(map[int]bool) // block index -> had exact hit
	for bi := range doc.Blocks {
		cands := t.ruleMatch(doc, bi)
		if len(cands) > 0 {
			ruleHit[bi] = true
		}
		out = append(out, cands...)
	}

	// Tier 2: fuzzy token overlap on blocks the rules missed.
	for bi := range doc.Blocks {
		if ruleHit[bi] {
			continue
		}
		out = append(out, t.fuzzyMatch(doc, bi)...)
	}

	// Tier 3: embedding similarity over chunk vectors.
	var embedErr error
	if t.embedder != nil && len(chunks) > 0 {
		cands, err := t.embedMatch(ctx, chunks)
		if err != nil {
			embedErr = err
		}
		out = append(out, cands...)
	}

	out = dedupeCandidates(out)
	markWholePage(doc, out)
	return out, embedErr
}

// ruleMatch finds exact (diacritic-folded) alias occurrences in one
// block, longest alias first, spans reported in original coordinates.
func (t *Tagger) ruleMatch(doc *Document, bi int) []ProcedureCandidate {
	block := &doc.Blocks[bi]
	folded, fmap := FoldWithMap(block.Text)
	folded = strings.ToLower(folded)
	if folded == "" {
		return nil
	}

	var out []ProcedureCandidate
	taken := make([]Span, 0, 2)
	for _, fa := range t.aliases {
		from := 0
		for {
			rel := strings.Index(folded[from:], fa.alias)
			if rel < 0 {
				break
			}
			start := from + rel
			end := start + len(fa.alias)
			from = start + 1
			if !wordBounded(folded, start, end) {
				continue
			}
			span := Span{Start: start, End: end}
			if overlapsAnySpan(span, taken) {
				continue
			}
			taken = append(taken, span)
			orig := OrigSpan(block.Text, fmap, start, end)
			orig.Start += block.Span.Start
			orig.End += block.Span.Start
			out = append(out, ProcedureCandidate{
				ProcedureID: fa.procID,
				Span:        orig,
				Block:       bi,
				Method:      MatchRule,
				Score:       fa.score,
				Context:     block.Text,
			})
		}
	}
	return out
}

// fuzzyMatch compares a block's token set against each procedure's name
// forms. Acronym-only overlap is not enough: at least one real word of
// the procedure name must appear in the block, which keeps a stray
// three-letter abbreviation from tagging an unrelated page.
func (t *Tagger) fuzzyMatch(doc *Document, bi int) []ProcedureCandidate {
	block := &doc.Blocks[bi]
	text := FoldKey(block.Text)
	if text == "" {
		return nil
	}

	var out []ProcedureCandidate
	for _, p := range t.procs {
		best := 0.0
		for _, form := range aliasForms(p) {
			if r := TokenSetRatio(form, block.Text); r > best {
				best = r
			}
		}
		if best < t.cfg.FuzzyThreshold {
			continue
		}
		if !wordCovered(p, text) {
			continue
		}
		out = append(out, ProcedureCandidate{
			ProcedureID: p.ID,
			Span:        block.Span,
			Block:       bi,
			Method:      MatchFuzzy,
			Score:       best,
			Context:     block.Text,
		})
	}
	return out
}

// wordCovered reports whether any multi-letter word from the procedure
// name appears as a token in the folded block text.
func wordCovered(p *Procedure, foldedBlock string) bool {
	blockTokens := tokenSet(foldedBlock)
	for tok := range tokenSet(FoldKey(p.Name)) {
		if len(tok) < 4 {
			continue
		}
		if blockTokens[tok] {
			return true
		}
	}
	return false
}

// embedMatch embeds chunk texts and compares them against catalog
// description vectors.
func (t *Tagger) embedMatch(ctx context.Context, chunks []Chunk) ([]ProcedureCandidate, error) {
	withVec := make([]*Procedure, 0, len(t.procs))
	for _, p := range t.procs {
		if len(p.Vector) > 0 {
			withVec = append(withVec, p)
		}
	}
	if len(withVec) == 0 {
		return nil, nil
	}

	// Chunks that arrive with vectors (the pipeline embeds them for
	// storage anyway) are not embedded twice.
	vecs := make([][]float32, len(chunks))
	var missing []int
	for i, c := range chunks {
		if len(c.Embedding) > 0 {
			vecs[i] = c.Embedding
		} else {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, ci := range missing {
			texts[i] = chunks[ci].EmbeddingText
		}
		got, err := t.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, Errorf(EUNAVAILABLE, "embedding chunks: %v", err)
		}
		if len(got) != len(missing) {
			return nil, Errorf(EINTERNAL, "embedder returned %d vectors for %d chunks", len(got), len(missing))
		}
		for i, ci := range missing {
			vecs[ci] = got[i]
		}
	}

	var out []ProcedureCandidate
	for i, c := range chunks {
		for _, p := range withVec {
			sim := cosineSimilarity(vecs[i], p.Vector)
			if sim < t.cfg.EmbedThreshold {
				continue
			}
			out = append(out, ProcedureCandidate{
				ProcedureID: p.ID,
				Span:        c.Span,
				Block:       c.Block,
				Method:      MatchEmbedding,
				Score:       sim,
				Context:     c.Content,
			})
		}
	}
	return out, nil
}

// dedupeCandidates keeps one candidate per (procedure, span), preferring
// stronger methods: rule over fuzzy over embedding, then higher score.
func dedupeCandidates(cands []ProcedureCandidate) []ProcedureCandidate {
	rank := map[MatchMethod]int{MatchRule: 0, MatchFuzzy: 1, MatchEmbedding: 2}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if rank[a.Method] != rank[b.Method] {
			return rank[a.Method] < rank[b.Method]
		}
		return a.Score > b.Score
	})

	out := cands[:0]
	for _, c := range cands {
		dup := false
		for _, kept := range out {
			if kept.ProcedureID == c.ProcedureID && kept.Span.Overlaps(c.Span) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

// markWholePage widens the extraction context for procedures matched
// exactly once on the page: a single mention means the whole page is
// likely about that procedure, so extraction sees all of it.
func markWholePage(doc *Document, cands []ProcedureCandidate) {
	count := make(map[string]int)
	for _, c := range cands {
		count[c.ProcedureID]++
	}
	for i := range cands {
		if count[cands[i].ProcedureID] == 1 {
			cands[i].WholePage = true
			cands[i].Context = doc.Text
		}
	}
}

func wordBounded(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func overlapsAnySpan(s Span, spans []Span) bool {
	for _, o := range spans {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
