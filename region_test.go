package orgkb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgkb/orgkb"
)

// scanned builds the doc and runs a scanner over it with the shared
// test index.
func scanned(t *testing.T, pageID string, specs ...blockSpec) (*orgkb.Document, []orgkb.Anchor) {
	t.Helper()
	ix := buildTestIndex(t)
	doc := buildDoc(pageID, specs...)
	anchors, err := orgkb.NewScanner(ix, orgkb.ScanConfig{}).Scan(doc)
	require.NoError(t, err)
	return doc, anchors
}

func TestBuildRegions(t *testing.T) {
	t.Parallel()

	t.Run("anchors of one entity in one section form one region", func(t *testing.T) {
		t.Parallel()

		doc, anchors := scanned(t, "kontakt",
			heading(2, "Sekretariat"),
			para("Jan Kowalski"),
			para("jan.kowalski@org.edu"),
			para("+48 123 456 789"),
		)
		require.Len(t, anchors, 3)

		regions, err := orgkb.BuildRegions(doc, anchors, orgkb.RegionConfig{})
		require.NoError(t, err)
		require.Len(t, regions, 1)

		r := regions[0]
		assert.Equal(t, "per-1", r.EntityID)
		assert.Len(t, r.AnchorIDs, 3)
		assert.Equal(t, []int{1, 2, 3}, r.Blocks)
		assert.Equal(t, []string{"Sekretariat"}, r.ContextTags)
		for _, a := range anchors {
			assert.True(t, r.Span.Contains(a.Span))
		}
	})

	t.Run("heading boundary splits regions", func(t *testing.T) {
		t.Parallel()

		doc, anchors := scanned(t, "kadra",
			heading(2, "Sekretariat"),
			para("Jan Kowalski, jan.kowalski@org.edu"),
			heading(2, "Wykładowcy"),
			para("Łukasz Późny"),
		)

		regions, err := orgkb.BuildRegions(doc, anchors, orgkb.RegionConfig{})
		require.NoError(t, err)
		require.Len(t, regions, 2)
		assert.Equal(t, "per-1", regions[0].EntityID)
		assert.Equal(t, "per-2", regions[1].EntityID)
		assert.False(t, regions[0].Span.Overlaps(regions[1].Span))
	})

	t.Run("another entity's anchor ends the run", func(t *testing.T) {
		t.Parallel()

		doc, anchors := scanned(t, "kadra",
			heading(2, "Pracownicy"),
			para("Jan Kowalski, jan.kowalski@org.edu"),
			para("Łukasz Późny"),
		)

		regions, err := orgkb.BuildRegions(doc, anchors, orgkb.RegionConfig{})
		require.NoError(t, err)
		require.Len(t, regions, 2)

		byEntity := map[string]orgkb.Region{}
		for _, r := range regions {
			byEntity[r.EntityID] = r
		}
		assert.Len(t, byEntity["per-1"].AnchorIDs, 2)
		assert.Len(t, byEntity["per-2"].AnchorIDs, 1)
		assert.False(t, byEntity["per-1"].Span.Overlaps(byEntity["per-2"].Span))
	})

	t.Run("contested block contributes only the anchor envelope", func(t *testing.T) {
		t.Parallel()

		doc, anchors := scanned(t, "kadra",
			para("Jan Kowalski oraz Łukasz Późny"),
		)
		require.Len(t, anchors, 2)

		regions, err := orgkb.BuildRegions(doc, anchors, orgkb.RegionConfig{})
		require.NoError(t, err)
		require.Len(t, regions, 2)
		assert.False(t, regions[0].Span.Overlaps(regions[1].Span))
		assert.Equal(t, "Jan Kowalski", doc.Text[regions[0].Span.Start:regions[0].Span.End])
		assert.Equal(t, "Łukasz Późny", doc.Text[regions[1].Span.Start:regions[1].Span.End])
	})

	t.Run("unresolved anchors are absorbed, never seeds", func(t *testing.T) {
		t.Parallel()

		doc, anchors := scanned(t, "kontakt",
			heading(2, "Sekretariat"),
			para("Jan Kowalski"),
			para("sekretariat@org.edu"), // not in the reference database
			para("jan.kowalski@org.edu"),
		)
		require.Len(t, anchors, 3)

		regions, err := orgkb.BuildRegions(doc, anchors, orgkb.RegionConfig{})
		require.NoError(t, err)
		require.Len(t, regions, 1)
		assert.Len(t, regions[0].AnchorIDs, 3)

		// Without any resolved anchor there is no region at all.
		doc2, anchors2 := scanned(t, "kontakt2", para("sekretariat@org.edu"))
		require.Len(t, anchors2, 1)
		regions2, err := orgkb.BuildRegions(doc2, anchors2, orgkb.RegionConfig{})
		require.NoError(t, err)
		assert.Empty(t, regions2)
	})

	t.Run("region growth respects the block cap", func(t *testing.T) {
		t.Parallel()

		doc, anchors := scanned(t, "kontakt",
			heading(2, "Sekretariat"),
			para("Jan Kowalski"),
			para("pokój 12"),
			para("poniedziałek 8-16"),
			para("wtorek 8-16"),
			para("jan.kowalski@org.edu"),
		)

		regions, err := orgkb.BuildRegions(doc, anchors, orgkb.RegionConfig{MaxBlocks: 2})
		require.NoError(t, err)
		require.Len(t, regions, 2)
		for _, r := range regions {
			assert.LessOrEqual(t, len(r.Blocks), 2)
		}
	})

	t.Run("region IDs are stable across runs", func(t *testing.T) {
		t.Parallel()

		doc, anchors := scanned(t, "kontakt",
			para("Jan Kowalski, jan.kowalski@org.edu"),
		)

		first, err := orgkb.BuildRegions(doc, anchors, orgkb.RegionConfig{})
		require.NoError(t, err)
		second, err := orgkb.BuildRegions(doc, anchors, orgkb.RegionConfig{})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}
