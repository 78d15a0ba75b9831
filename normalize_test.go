package orgkb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgkb/orgkb"
)

func TestFold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Jan Kowalski", "jan kowalski"},
		{"strips diacritics", "Łukasz Późny", "lukasz pozny"},
		{"polish letters", "Żółć", "zolc"},
		{"preserves whitespace", "a  b", "a  b"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, orgkb.Fold(tt.input))
		})
	}
}

func TestFoldKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jan kowalski", orgkb.FoldKey("  Jan\t Kowalski \n"))
	assert.Equal(t, "lukasz pozny", orgkb.FoldKey("Łukasz  Późny"))
	assert.Equal(t, "", orgkb.FoldKey("   "))
}

func TestFoldWithMap(t *testing.T) {
	t.Parallel()

	t.Run("maps folded offsets back to original bytes", func(t *testing.T) {
		t.Parallel()

		orig := "mgr Łukasz Późny, pokój 12"
		folded, m := orgkb.FoldWithMap(orig)
		require.Contains(t, folded, "lukasz pozny")

		start := len("mgr ")
		end := start + len("lukasz pozny")
		span := orgkb.OrigSpan(orig, m, start, end)
		assert.Equal(t, "Łukasz Późny", orig[span.Start:span.End])
	})

	t.Run("identity for plain ascii", func(t *testing.T) {
		t.Parallel()

		folded, m := orgkb.FoldWithMap("Jan Kowalski")
		assert.Equal(t, "jan kowalski", folded)
		span := orgkb.OrigSpan("Jan Kowalski", m, 4, 12)
		assert.Equal(t, orgkb.Span{Start: 4, End: 12}, span)
	})

	t.Run("invalid range yields empty span", func(t *testing.T) {
		t.Parallel()

		_, m := orgkb.FoldWithMap("abc")
		assert.Equal(t, orgkb.Span{}, orgkb.OrigSpan("abc", m, 2, 2))
		assert.Equal(t, orgkb.Span{}, orgkb.OrigSpan("abc", m, 0, 99))
	})
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jan.kowalski@gmina.pl", orgkb.NormalizeEmail("  Jan.Kowalski@Gmina.PL "))
	assert.Equal(t, "jan kowalski@gmina.pl", orgkb.NormalizeEmail("jan%20kowalski@gmina.pl"))
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"international format", "+48 58 347 12 34", "583471234", true},
		{"dashes", "58 347-12-34", "583471234", true},
		{"extension stripped", "58 347-12-34 wew. 123", "583471234", true},
		{"ext marker", "583471234 ext. 7", "583471234", true},
		{"double zero prefix", "0048 583471234", "583471234", true},
		{"bare nine digits", "583471234", "583471234", true},
		{"non-breaking spaces", "+48 58 347 12 34", "583471234", true},
		{"too short", "347 12 34", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := orgkb.NormalizePhone(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenSetRatio(t *testing.T) {
	t.Parallel()

	// Word order and case do not matter.
	assert.Equal(t, 1.0, orgkb.TokenSetRatio("Warunki Zabudowy", "zabudowy warunki"))

	// One side being a token subset of the other scores 1.0.
	assert.Equal(t, 1.0, orgkb.TokenSetRatio("warunki zabudowy", "decyzja warunki zabudowy"))

	// A single-letter typo in one word still scores well above the
	// fuzzy threshold.
	assert.GreaterOrEqual(t,
		orgkb.TokenSetRatio("Wydanie dowodu osobistego", "Wydanie dowodu osobistgo"), 0.95)

	// Unrelated names score low even when letters overlap.
	assert.Less(t, orgkb.TokenSetRatio("warunki zabudowy", "dowod osobisty"), 0.5)

	assert.Equal(t, 0.0, orgkb.TokenSetRatio("", "cokolwiek"))
}
