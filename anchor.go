package orgkb

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// AnchorType identifies what kind of pattern an anchor matched.
type AnchorType string

// Anchor types.
const (
	AnchorName  AnchorType = "name"
	AnchorEmail AnchorType = "email"
	AnchorPhone AnchorType = "phone"
)

// Anchor is a single in-document match of a name, email, or phone
// pattern, optionally resolved to a reference entity. Anchors are never
// mutated after the scanner creates them; downstream stages attach
// judgments by ID instead of editing in place.
type Anchor struct {
	ID    string     `json:"id"`
	Type  AnchorType `json:"type"`
	Span  Span       `json:"span"`
	Block int        `json:"block"` // index into Document.Blocks, -1 if outside any block

	Text  string `json:"text"`  // matched text as it appears in the document
	Value string `json:"value"` // normalized value (folded name, email, NSN)

	// EntityID is set when the match resolves to exactly one top
	// candidate. Candidates carries the full ranked list for name
	// anchors so the filter can detect homonyms.
	EntityID   string      `json:"entityId,omitempty"`
	Candidates []NameMatch `json:"candidates,omitempty"`

	// Confidence is identity confidence of the match itself, separate
	// from entity assignment: exact full name 1.0, surname only 0.5,
	// exact email/phone format 1.0.
	Confidence float64 `json:"confidence"`

	Source string `json:"source"` // det:text, det:mailto, det:telhref
}

// Resolved reports whether the anchor maps to a single entity.
func (a *Anchor) Resolved() bool {
	return a.EntityID != ""
}

// AnchorID derives a stable anchor identifier from the page, type, and
// span, so repeated runs over an unchanged page produce identical IDs.
func AnchorID(pageID string, typ AnchorType, span Span) string {
	return fmt.Sprintf("a-%016x", xxhash.Sum64String(fmt.Sprintf("%s|%s|%d|%d", pageID, typ, span.Start, span.End)))
}

// Region is a contiguous document span grouping one entity's anchors
// plus surrounding context. Regions hold anchor IDs, not anchor copies.
// Invariant: regions of different entities never overlap, and every
// member anchor's span is contained in the region span.
type Region struct {
	ID          string   `json:"id"`
	EntityID    string   `json:"entityId"`
	AnchorIDs   []string `json:"anchorIds"` // document order
	Span        Span     `json:"span"`
	Blocks      []int    `json:"blocks"`                // claimed block indexes, ascending
	ContextTags []string `json:"contextTags,omitempty"` // breadcrumbs of the seed block
}

// RegionID derives a stable region identifier from page, entity, and span.
func RegionID(pageID, entityID string, span Span) string {
	return fmt.Sprintf("r-%016x", xxhash.Sum64String(fmt.Sprintf("%s|%s|%d|%d", pageID, entityID, span.Start, span.End)))
}

// TargetKind says what a classification applies to.
type TargetKind string

// Classification targets.
const (
	TargetAnchor TargetKind = "anchor"
	TargetRegion TargetKind = "region"
)

// Verdict is the filter's judgment of an anchor or region.
type Verdict string

// Verdicts.
const (
	VerdictAccepted  Verdict = "accepted"
	VerdictDropped   Verdict = "dropped"
	VerdictAmbiguous Verdict = "ambiguous"
)

// Reason codes attached to non-accepted classifications.
const (
	ReasonLowConfidence     = "low_confidence"
	ReasonUnresolvedHomonym = "unresolved_homonym"
	ReasonDuplicate         = "duplicate"
	ReasonUnlinked          = "unlinked"
	ReasonEmptyRegion       = "empty_region"
)

// Classification is the filter's verdict for one anchor or region.
// Exactly one classification exists per target per run.
type Classification struct {
	TargetID string     `json:"targetId"`
	Target   TargetKind `json:"target"`
	Verdict  Verdict    `json:"verdict"`
	Reason   string     `json:"reason,omitempty"`
	Score    float64    `json:"score"`
}
