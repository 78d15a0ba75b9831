package orgkb

import "sort"

// RegionConfig tunes region expansion.
type RegionConfig struct {
	// MaxBlocks caps how many blocks one region may claim. Zero means 4.
	MaxBlocks int

	// MaxSpan caps a region's span length in bytes. Zero means 1200.
	MaxSpan int
}

func (c RegionConfig) maxBlocks() int {
	if c.MaxBlocks <= 0 {
		return 4
	}
	return c.MaxBlocks
}

func (c RegionConfig) maxSpan() int {
	if c.MaxSpan <= 0 {
		return 1200
	}
	return c.MaxSpan
}

// BuildRegions groups anchors that belong to the same entity into
// contiguous regions. Starting from a seed anchor, a region grows until
// it hits a heading boundary, another entity's anchor, or the span cap.
// Unresolved anchors are never seeds but are absorbed when they fall
// inside a built region.
//
// The result is a pure function of the anchor set and document
// structure: anchors are processed in document order and blocks are
// claimed at most once, so no ordering-dependent mutation can occur.
// Returns EINTERNAL if the no-overlap invariant would be violated.
func BuildRegions(doc *Document, anchors []Anchor, cfg RegionConfig) ([]Region, error) {
	sorted := make([]Anchor, len(anchors))
	copy(sorted, anchors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Span.Start < sorted[j].Span.Start
	})

	var resolved []*Anchor
	for i := range sorted {
		if sorted[i].Resolved() && sorted[i].Block >= 0 {
			resolved = append(resolved, &sorted[i])
		}
	}

	// entitiesByBlock marks blocks contested by multiple entities; a
	// contested block never contributes more than the anchor envelope
	// to any region's span.
	entitiesByBlock := make(map[int]map[string]bool)
	anchorBlocks := make(map[int]bool)
	for i := range sorted {
		if sorted[i].Block < 0 {
			continue
		}
		anchorBlocks[sorted[i].Block] = true
		if sorted[i].Resolved() {
			set, ok := entitiesByBlock[sorted[i].Block]
			if !ok {
				set = make(map[string]bool)
				entitiesByBlock[sorted[i].Block] = set
			}
			set[sorted[i].EntityID] = true
		}
	}
	claimed := make(map[int]string) // block index -> entity ID

	var regions []Region
	for start := 0; start < len(resolved); {
		run := []*Anchor{resolved[start]}
		end := start + 1
		for end < len(resolved) && extendsRun(doc, cfg, run, resolved[end]) {
			run = append(run, resolved[end])
			end++
		}
		regions = append(regions, buildRegion(doc, cfg, run, entitiesByBlock, anchorBlocks, claimed))
		start = end
	}

	absorbUnresolved(&regions, sorted)

	for i := range regions {
		regions[i].ID = RegionID(doc.PageID, regions[i].EntityID, regions[i].Span)
	}

	for i := range regions {
		for j := i + 1; j < len(regions); j++ {
			if regions[i].EntityID != regions[j].EntityID && regions[i].Span.Overlaps(regions[j].Span) {
				return nil, Errorf(EINTERNAL, "regions %s and %s of different entities overlap", regions[i].ID, regions[j].ID)
			}
		}
	}
	return regions, nil
}

// sectionOf returns the heading governing a block (the block itself for
// headings), used as the structural boundary for region growth.
func sectionOf(doc *Document, block int) int {
	b := &doc.Blocks[block]
	if b.Kind == BlockHeading {
		return b.Index
	}
	return b.Parent
}

// extendsRun reports whether next continues the current same-entity run:
// same entity, same structural section, within block and span caps.
func extendsRun(doc *Document, cfg RegionConfig, run []*Anchor, next *Anchor) bool {
	last := run[len(run)-1]
	if next.EntityID != last.EntityID {
		return false
	}
	if next.Block != last.Block && sectionOf(doc, next.Block) != sectionOf(doc, run[0].Block) {
		return false
	}
	if next.Block-run[0].Block+1 > cfg.maxBlocks() {
		return false
	}
	if next.Span.End-run[0].Span.Start > cfg.maxSpan() {
		return false
	}
	return true
}

func buildRegion(doc *Document, cfg RegionConfig, run []*Anchor, entitiesByBlock map[int]map[string]bool, anchorBlocks map[int]bool, claimed map[int]string) Region {
	entityID := run[0].EntityID
	startBlock := run[0].Block
	endBlock := run[len(run)-1].Block

	isContested := func(block int) bool {
		for id := range entitiesByBlock[block] {
			if id != entityID {
				return true
			}
		}
		return false
	}

	// Expand outward over adjacent anchor-free, unclaimed blocks in the
	// same section. Contested edge blocks block expansion on that side.
	section := sectionOf(doc, startBlock)
	lo, hi := startBlock, endBlock
	blockCount := endBlock - startBlock + 1
	spanLen := func(lo, hi int) int {
		return doc.Blocks[hi].Span.End - doc.Blocks[lo].Span.Start
	}

	if !isContested(startBlock) {
		for lo > 0 && blockCount < cfg.maxBlocks() {
			prev := lo - 1
			if doc.Blocks[prev].Kind == BlockHeading || sectionOf(doc, prev) != section {
				break
			}
			if anchorBlocks[prev] || claimed[prev] != "" {
				break
			}
			if spanLen(prev, hi) > cfg.maxSpan() {
				break
			}
			lo = prev
			blockCount++
		}
	}
	if !isContested(endBlock) {
		for hi < len(doc.Blocks)-1 && blockCount < cfg.maxBlocks() {
			next := hi + 1
			if doc.Blocks[next].Kind == BlockHeading || sectionOf(doc, next) != section {
				break
			}
			if anchorBlocks[next] || claimed[next] != "" {
				break
			}
			if spanLen(lo, next) > cfg.maxSpan() {
				break
			}
			hi = next
			blockCount++
		}
	}

	span := Span{Start: doc.Blocks[lo].Span.Start, End: doc.Blocks[hi].Span.End}
	if isContested(startBlock) {
		span.Start = run[0].Span.Start
	}
	if isContested(endBlock) {
		span.End = run[len(run)-1].Span.End
	}

	var blocks []int
	for b := lo; b <= hi; b++ {
		if !isContested(b) {
			claimed[b] = entityID
		}
		blocks = append(blocks, b)
	}

	region := Region{
		EntityID:    entityID,
		Span:        span,
		Blocks:      blocks,
		ContextTags: doc.Blocks[run[0].Block].Breadcrumbs,
	}
	for _, a := range run {
		region.AnchorIDs = append(region.AnchorIDs, a.ID)
	}
	return region
}

// absorbUnresolved attaches unresolved anchors to the region whose span
// contains them. They stay low-confidence members pending classification.
// Member IDs are kept in document order afterwards.
func absorbUnresolved(regions *[]Region, sorted []Anchor) {
	spans := make(map[string]Span, len(sorted))
	for i := range sorted {
		spans[sorted[i].ID] = sorted[i].Span
	}

	for i := range sorted {
		a := &sorted[i]
		if a.Resolved() {
			continue
		}
		for r := range *regions {
			region := &(*regions)[r]
			if region.Span.Contains(a.Span) {
				region.AnchorIDs = append(region.AnchorIDs, a.ID)
				break
			}
		}
	}

	for r := range *regions {
		ids := (*regions)[r].AnchorIDs
		sort.SliceStable(ids, func(i, j int) bool {
			return spans[ids[i]].Start < spans[ids[j]].Start
		})
	}
}
