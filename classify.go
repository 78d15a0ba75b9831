package orgkb

// ClassifyConfig tunes the quality filter.
type ClassifyConfig struct {
	// ConfidenceFloor drops anchors below this confidence. Zero means 0.4,
	// which keeps surname-only matches (0.5) in play for corroboration.
	ConfidenceFloor float64
}

func (c ClassifyConfig) floor() float64 {
	if c.ConfidenceFloor <= 0 {
		return 0.4
	}
	return c.ConfidenceFloor
}

// Classify scores every anchor and region and produces exactly one
// classification per target. Rules apply in order, first match wins:
//
//  1. confidence below the floor: dropped (low_confidence)
//  2. name anchor with multiple equally-top candidates and no
//     corroborating email/phone anchor in the same region: ambiguous
//     (unresolved_homonym), excluded from facts but kept for audit
//  3. duplicate (entity, type, normalized value) within a region: keep
//     the highest-confidence instance, drop the rest (duplicate)
//  4. anchor resolved to nothing and absorbed by no region: dropped
//     (unlinked)
//  5. region whose members are all dropped or ambiguous: dropped
//  6. otherwise accepted
//
// Classify is pure and consults nothing external, so verdicts are
// reproducible for debugging and testing.
func Classify(anchors []Anchor, regions []Region, cfg ClassifyConfig) []Classification {
	regionOf := make(map[string]int)
	for r := range regions {
		for _, id := range regions[r].AnchorIDs {
			regionOf[id] = r
		}
	}
	byID := make(map[string]*Anchor, len(anchors))
	for i := range anchors {
		byID[anchors[i].ID] = &anchors[i]
	}

	verdicts := make(map[string]Classification, len(anchors))
	out := make([]Classification, 0, len(anchors)+len(regions))
	record := func(c Classification) {
		out = append(out, c)
		verdicts[c.TargetID] = c
	}
	classified := func(id string) bool {
		_, ok := verdicts[id]
		return ok
	}

	// Rules 1, 2, 4.
	for i := range anchors {
		a := &anchors[i]

		if a.Confidence < cfg.floor() {
			record(Classification{TargetID: a.ID, Target: TargetAnchor, Verdict: VerdictDropped, Reason: ReasonLowConfidence, Score: a.Confidence})
			continue
		}

		ri, inRegion := regionOf[a.ID]
		if a.Type == AnchorName && isHomonym(a) {
			if !inRegion || !corroborated(a, &regions[ri], byID) {
				record(Classification{TargetID: a.ID, Target: TargetAnchor, Verdict: VerdictAmbiguous, Reason: ReasonUnresolvedHomonym, Score: a.Confidence})
				continue
			}
		}

		if !a.Resolved() && len(a.Candidates) == 0 && !inRegion {
			record(Classification{TargetID: a.ID, Target: TargetAnchor, Verdict: VerdictDropped, Reason: ReasonUnlinked, Score: a.Confidence})
			continue
		}
	}

	// Rule 3: duplicates among anchors still unclassified.
	for r := range regions {
		best := make(map[string]*Anchor)
		for _, id := range regions[r].AnchorIDs {
			a := byID[id]
			if a == nil || classified(id) {
				continue
			}
			key := a.EntityID + "|" + string(a.Type) + "|" + a.Value
			if prev, ok := best[key]; ok {
				loser := a
				if a.Confidence > prev.Confidence {
					loser = prev
					best[key] = a
				}
				record(Classification{TargetID: loser.ID, Target: TargetAnchor, Verdict: VerdictDropped, Reason: ReasonDuplicate, Score: loser.Confidence})
			} else {
				best[key] = a
			}
		}
	}

	// Remaining anchors are accepted.
	for i := range anchors {
		a := &anchors[i]
		if !classified(a.ID) {
			record(Classification{TargetID: a.ID, Target: TargetAnchor, Verdict: VerdictAccepted, Score: a.Confidence})
		}
	}

	// Rule 5: regions live or die with their members.
	for r := range regions {
		region := &regions[r]
		alive := false
		score := 0.0
		for _, id := range region.AnchorIDs {
			if v, ok := verdicts[id]; ok && v.Verdict == VerdictAccepted {
				alive = true
				if v.Score > score {
					score = v.Score
				}
			}
		}
		if alive {
			record(Classification{TargetID: region.ID, Target: TargetRegion, Verdict: VerdictAccepted, Score: score})
		} else {
			record(Classification{TargetID: region.ID, Target: TargetRegion, Verdict: VerdictDropped, Reason: ReasonEmptyRegion})
		}
	}

	return out
}

// isHomonym reports whether a name anchor has more than one candidate
// at the top strength.
func isHomonym(a *Anchor) bool {
	return len(a.Candidates) > 1 && a.Candidates[0].Strength == a.Candidates[1].Strength
}

// corroborated reports whether the region holds an email or phone
// anchor resolved to one of the name anchor's top candidates.
func corroborated(name *Anchor, region *Region, byID map[string]*Anchor) bool {
	top := make(map[string]bool)
	for _, c := range name.Candidates {
		if c.Strength == name.Candidates[0].Strength {
			top[c.EntityID] = true
		}
	}
	for _, id := range region.AnchorIDs {
		a := byID[id]
		if a == nil || a.ID == name.ID {
			continue
		}
		if (a.Type == AnchorEmail || a.Type == AnchorPhone) && top[a.EntityID] {
			return true
		}
	}
	return false
}
