package orgkb

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips diacritics: NFKD decomposition followed by
// removal of combining marks. The stroked l does not decompose under
// NFKD and is mapped separately.
var foldTransformer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Map(func(r rune) rune {
		switch r {
		case 'ł':
			return 'l'
		case 'Ł':
			return 'L'
		}
		return r
	}),
)

// Fold lowercases s and strips diacritics ("Łukasz Późny" matches
// "lukasz pozny" after folding on both sides). Whitespace is preserved.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// FoldKey folds s and collapses runs of whitespace to single spaces.
// This is the canonical form for name, alias, and label lookup keys.
func FoldKey(s string) string {
	return strings.Join(strings.Fields(Fold(s)), " ")
}

// FoldWithMap folds s and returns a byte-level map from each byte of the
// folded text back to the byte offset of the originating rune in s. The
// map lets a match found in folded text be cut at its exact span in the
// original.
func FoldWithMap(s string) (string, []int) {
	var b strings.Builder
	m := make([]int, 0, len(s))
	for i, r := range s {
		for _, d := range norm.NFKD.String(string(unicode.ToLower(r))) {
			if unicode.Is(unicode.Mn, d) {
				continue
			}
			if d == 'ł' {
				d = 'l'
			}
			b.WriteRune(d)
			for n := utf8.RuneLen(d); n > 0; n-- {
				m = append(m, i)
			}
		}
	}
	return b.String(), m
}

// OrigSpan converts a [start, end) byte range in folded text back to the
// corresponding span in the original string s, given the map produced by
// FoldWithMap.
func OrigSpan(s string, m []int, start, end int) Span {
	if start >= end || end > len(m) {
		return Span{}
	}
	os := m[start]
	oe := m[end-1]
	_, n := utf8.DecodeRuneInString(s[oe:])
	return Span{Start: os, End: oe + n}
}

// NormalizeEmail lowercases, trims, and percent-decodes an email address.
func NormalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if dec, err := url.PathUnescape(s); err == nil {
		s = dec
	}
	return s
}

// phoneExtRe matches extension markers and separators after which the
// rest of a phone string is discarded ("58 347-12-34 wew. 123").
var phoneExtRe = regexp.MustCompile(`(?i)(?:\bwew\b\.?|\bw\.|\bext\b\.?|\bextension\b|\bx\b|;|#)`)

// NormalizePhone extracts the 9-digit national significant number from a
// phone string like "+48 58 347 12 34" or "58 347-12-34 wew. 123".
// It strips extension suffixes, the international 00 prefix, and the 48
// country code, then keeps the last 9 digits. Returns false if fewer
// than 9 digits remain.
func NormalizePhone(raw string) (string, bool) {
	s := strings.ReplaceAll(raw, " ", " ")
	s = strings.TrimSpace(s)
	if loc := phoneExtRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()

	if strings.HasPrefix(n, "00") {
		n = n[2:]
	}
	if strings.HasPrefix(n, "48") && len(n) >= 11 {
		n = n[2:]
	}
	if len(n) < 9 {
		return "", false
	}
	return n[len(n)-9:], true
}

// TokenSetRatio returns the token-set similarity of a and b in [0, 1],
// after folding both sides. Tokens are sorted and split into the shared
// part and each side's remainder; the score is the best indel ratio
// among the three pairings, so word order never matters, one side being
// a token subset of the other scores 1.0, and a near-miss spelling
// still scores high. Used for fuzzy alias matching.
func TokenSetRatio(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var shared, onlyA, onlyB []string
	for tok := range ta {
		if tb[tok] {
			shared = append(shared, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if !ta[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	if len(onlyA) == 0 && len(onlyB) == 0 {
		return 1
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(shared, " ")
	sa := joinNonEmpty(sect, strings.Join(onlyA, " "))
	sb := joinNonEmpty(sect, strings.Join(onlyB, " "))

	best := indelRatio(sect, sa)
	if r := indelRatio(sect, sb); r > best {
		best = r
	}
	if r := indelRatio(sa, sb); r > best {
		best = r
	}
	return best
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

// indelRatio is the normalized insert/delete similarity of two strings:
// 2*LCS / (len(a)+len(b)).
func indelRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	return 2 * float64(lcsLength(a, b)) / float64(len(a)+len(b))
}

// lcsLength computes the longest common subsequence length with a
// two-row DP over bytes. Inputs are folded, so bytes are ASCII here.
func lcsLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			if a[i] == b[j] {
				cur[j+1] = prev[j] + 1
			} else if prev[j+1] >= cur[j] {
				cur[j+1] = prev[j+1]
			} else {
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(Fold(s)) {
		out[tok] = true
	}
	return out
}
