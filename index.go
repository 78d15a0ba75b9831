package orgkb

import (
	"sort"
	"strings"

	"github.com/orgkb/orgkb/bloom"
)

// NameMatch is one candidate resolution of a name lookup.
type NameMatch struct {
	EntityID string  `json:"entityId"`
	Strength float64 `json:"strength"` // 1.0 full name, 0.5 surname only
}

// Index is the in-memory lookup structure built from the employee/unit
// database. Name lookup handles case folding, diacritic normalization,
// and first/last order swaps; email and phone lookup are exact after
// format normalization, with no fuzziness, so contact data can never
// resolve to the wrong person.
//
// The zero value is unbuilt: every lookup fails with ENOTBUILT until
// BuildIndex has run. An Index is immutable once built and safe for
// concurrent readers.
type Index struct {
	built bool

	fullName map[string][]string // folded "first last" and "last first" -> entity IDs
	surname  map[string][]string // folded surname -> entity IDs
	email    map[string]string   // normalized email -> entity ID
	phone    map[string]string   // 9-digit NSN -> entity ID

	entities map[string]*Entity
	units    map[string]*Unit

	nameKeys      *bloom.Filter // prefilter for the sliding-window name detector
	maxNameTokens int
}

// BuildIndex builds an Index from the reference database snapshot.
// Entity order does not affect the resulting lookups beyond candidate
// ranking ties, which are broken by entity ID.
func BuildIndex(entities []*Entity, units []*Unit) (*Index, error) {
	ix := &Index{
		built:    true,
		fullName: make(map[string][]string),
		surname:  make(map[string][]string),
		email:    make(map[string]string),
		phone:    make(map[string]string),
		entities: make(map[string]*Entity, len(entities)),
		units:    make(map[string]*Unit, len(units)),
	}

	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		ix.entities[e.ID] = e

		names := append([]string{e.CanonicalName}, e.NameVariants...)
		for _, name := range names {
			key := FoldKey(name)
			if key == "" {
				continue
			}
			ix.addName(key, e.ID)

			// Index the swapped token order so "Kowalski Jan" finds
			// the entity stored as "Jan Kowalski".
			toks := strings.Fields(key)
			if len(toks) >= 2 {
				swapped := toks[len(toks)-1] + " " + strings.Join(toks[:len(toks)-1], " ")
				ix.addName(swapped, e.ID)
				ix.addSurname(toks[len(toks)-1], e.ID)
			}
			if ix.maxNameTokens < len(toks) {
				ix.maxNameTokens = len(toks)
			}
		}

		for _, em := range e.Emails {
			ix.email[NormalizeEmail(em)] = e.ID
		}
		for _, ph := range e.Phones {
			if nsn, ok := NormalizePhone(ph); ok {
				ix.phone[nsn] = e.ID
			}
		}
	}

	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, err
		}
		ix.units[u.ID] = u
	}

	// Size the prefilter for every full-name and surname key. False
	// positives only cost a map lookup; false negatives cannot happen.
	n := uint(len(ix.fullName) + len(ix.surname))
	if n == 0 {
		n = 1
	}
	ix.nameKeys = bloom.NewFilter(n, 0.01)
	for key := range ix.fullName {
		ix.nameKeys.Add(key)
	}
	for key := range ix.surname {
		ix.nameKeys.Add(key)
	}

	return ix, nil
}

func (ix *Index) addName(key, entityID string) {
	for _, id := range ix.fullName[key] {
		if id == entityID {
			return
		}
	}
	ix.fullName[key] = append(ix.fullName[key], entityID)
}

func (ix *Index) addSurname(key, entityID string) {
	for _, id := range ix.surname[key] {
		if id == entityID {
			return
		}
	}
	ix.surname[key] = append(ix.surname[key], entityID)
}

// Built reports whether BuildIndex has populated the index.
func (ix *Index) Built() bool {
	return ix.built
}

// MaxNameTokens returns the token count of the longest indexed name.
// The scanner uses it to bound its sliding window.
func (ix *Index) MaxNameTokens() int {
	if ix.maxNameTokens < 2 {
		return 2
	}
	return ix.maxNameTokens
}

// MightContainName reports whether the folded key could be an indexed
// name. False positives are possible; false negatives are not.
func (ix *Index) MightContainName(foldedKey string) bool {
	return ix.built && ix.nameKeys.Test(foldedKey)
}

// LookupName returns candidate entities for a name mention, ordered by
// match strength, then entity ID for determinism. An empty result means
// the text is not a known name.
func (ix *Index) LookupName(text string) ([]NameMatch, error) {
	if !ix.built {
		return nil, Errorf(ENOTBUILT, "reference index not built")
	}

	key := FoldKey(text)
	var matches []NameMatch
	for _, id := range ix.fullName[key] {
		matches = append(matches, NameMatch{EntityID: id, Strength: 1.0})
	}
	if len(matches) == 0 && !strings.Contains(key, " ") {
		for _, id := range ix.surname[key] {
			matches = append(matches, NameMatch{EntityID: id, Strength: 0.5})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Strength != matches[j].Strength {
			return matches[i].Strength > matches[j].Strength
		}
		return matches[i].EntityID < matches[j].EntityID
	})
	return matches, nil
}

// LookupEmail resolves a normalized email to an entity ID.
// Returns ENOTFOUND if no entity owns the address.
func (ix *Index) LookupEmail(text string) (string, error) {
	if !ix.built {
		return "", Errorf(ENOTBUILT, "reference index not built")
	}
	if id, ok := ix.email[NormalizeEmail(text)]; ok {
		return id, nil
	}
	return "", Errorf(ENOTFOUND, "email %q not in reference database", text)
}

// LookupPhone resolves a phone string to an entity ID by normalized NSN.
// Returns ENOTFOUND if no entity owns the number.
func (ix *Index) LookupPhone(text string) (string, error) {
	if !ix.built {
		return "", Errorf(ENOTBUILT, "reference index not built")
	}
	nsn, ok := NormalizePhone(text)
	if !ok {
		return "", Errorf(EINVALID, "phone %q has no valid NSN", text)
	}
	if id, ok := ix.phone[nsn]; ok {
		return id, nil
	}
	return "", Errorf(ENOTFOUND, "phone %q not in reference database", text)
}

// Entity returns the entity with the given ID, or nil.
func (ix *Index) Entity(id string) *Entity {
	return ix.entities[id]
}

// Unit returns the unit with the given ID, or nil.
func (ix *Index) Unit(id string) *Unit {
	return ix.units[id]
}
