package orgkb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// FactOutcome is the explicit result of reconciling one fact against
// the knowledge store. Every proposed fact gets exactly one outcome;
// nothing is merged or discarded silently.
type FactOutcome string

// Fact outcomes.
const (
	OutcomeInserted  FactOutcome = "inserted"  // no prior value existed
	OutcomeUpdated   FactOutcome = "updated"   // prior value replaced, history kept
	OutcomeUnchanged FactOutcome = "unchanged" // prior value identical
	OutcomeConflict  FactOutcome = "conflict"  // prior value differs, left untouched
	OutcomeFailed    FactOutcome = "failed"    // store error, see Err
)

// ContactFact is one contact value for one entity, traced to its page.
type ContactFact struct {
	EntityID     string     `json:"entityId"`
	Kind         AnchorType `json:"kind"` // email or phone
	Value        string     `json:"value"`
	SourcePageID string     `json:"sourcePageId"`
	ExtractedAt  time.Time  `json:"extractedAt"`
}

// Validate returns an error if the fact contains invalid fields.
func (f *ContactFact) Validate() error {
	if f.EntityID == "" {
		return Errorf(EINVALID, "contact fact entity ID required")
	}
	if f.Kind != AnchorEmail && f.Kind != AnchorPhone {
		return Errorf(EINVALID, "contact fact kind must be email or phone")
	}
	if f.Value == "" {
		return Errorf(EINVALID, "contact fact value required")
	}
	return nil
}

// FactResult records the reconciliation outcome for one fact key.
type FactResult struct {
	Key     string      `json:"key"`
	Outcome FactOutcome `json:"outcome"`
	Prior   string      `json:"prior,omitempty"`
	Err     error       `json:"-"`
}

// KnowledgeService is the persistent knowledge store the reconciler
// diffs against. Read methods return ENOTFOUND when no value exists.
type KnowledgeService interface {
	// ContactValue returns the stored contact value for an entity and
	// kind. Returns ENOTFOUND if none is stored.
	ContactValue(ctx context.Context, entityID string, kind AnchorType) (string, error)

	// InsertContact stores a new contact fact.
	InsertContact(ctx context.Context, fact *ContactFact) error

	// ProcedureFactValue returns the stored value for a procedure field.
	// Returns ENOTFOUND if none is stored.
	ProcedureFactValue(ctx context.Context, procedureID, field string) (string, error)

	// InsertProcedureFact stores a new procedure fact.
	InsertProcedureFact(ctx context.Context, fact *ProcedureFact) error

	// UpdateProcedureFact replaces a procedure fact, retaining the
	// prior value in history.
	UpdateProcedureFact(ctx context.Context, fact *ProcedureFact, prior string) error

	// CreateChunks stores embedding chunks for a page, replacing any
	// previous chunks for the same page.
	CreateChunks(ctx context.Context, pageID string, chunks []Chunk) error
}

// Reconciler applies proposed facts to the knowledge store as explicit
// diffs. Concurrent pages may propose the same fact key; a per-key lock
// serializes the read-compare-write so outcomes stay consistent.
//
// Contacts and procedure facts diff differently. Contacts come from the
// curated reference database, so a differing page value is a conflict
// to review, never an overwrite. Procedure facts come from pages, so a
// differing value updates the store with the prior kept in history.
type Reconciler struct {
	store KnowledgeService

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReconciler returns a reconciler over the given store.
func NewReconciler(store KnowledgeService) *Reconciler {
	return &Reconciler{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Reconciler) keyLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// ContactKey is the stable identity of a contact fact.
func ContactKey(entityID string, kind AnchorType) string {
	return fmt.Sprintf("contact|%s|%s", entityID, kind)
}

// FactKey is the stable identity of a procedure fact.
func FactKey(procedureID, field string) string {
	return fmt.Sprintf("fact|%s|%s", procedureID, field)
}

// ReconcileContacts diffs proposed contact facts against the store.
// One result per fact; a store failure on one fact does not stop the
// rest. Results are sorted by key for deterministic output.
func (r *Reconciler) ReconcileContacts(ctx context.Context, facts []ContactFact) []FactResult {
	out := make([]FactResult, 0, len(facts))
	for i := range facts {
		out = append(out, r.reconcileContact(ctx, &facts[i]))
	}
	sortResults(out)
	return out
}

func (r *Reconciler) reconcileContact(ctx context.Context, fact *ContactFact) FactResult {
	key := ContactKey(fact.EntityID, fact.Kind)
	res := FactResult{Key: key}

	if err := fact.Validate(); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	l := r.keyLock(key)
	l.Lock()
	defer l.Unlock()

	prior, err := r.store.ContactValue(ctx, fact.EntityID, fact.Kind)
	switch {
	case ErrorCode(err) == ENOTFOUND:
		if err := r.store.InsertContact(ctx, fact); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}
		res.Outcome = OutcomeInserted
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Err = err
	case prior == fact.Value:
		res.Outcome = OutcomeUnchanged
		res.Prior = prior
	default:
		res.Outcome = OutcomeConflict
		res.Prior = prior
	}
	return res
}

// ReconcileFacts diffs proposed procedure facts against the store.
// Differing values are updated with the prior retained in history.
func (r *Reconciler) ReconcileFacts(ctx context.Context, facts []ProcedureFact) []FactResult {
	out := make([]FactResult, 0, len(facts))
	for i := range facts {
		out = append(out, r.reconcileFact(ctx, &facts[i]))
	}
	sortResults(out)
	return out
}

func (r *Reconciler) reconcileFact(ctx context.Context, fact *ProcedureFact) FactResult {
	key := FactKey(fact.ProcedureID, fact.Field)
	res := FactResult{Key: key}

	if err := fact.Validate(); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	l := r.keyLock(key)
	l.Lock()
	defer l.Unlock()

	prior, err := r.store.ProcedureFactValue(ctx, fact.ProcedureID, fact.Field)
	switch {
	case ErrorCode(err) == ENOTFOUND:
		if err := r.store.InsertProcedureFact(ctx, fact); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}
		res.Outcome = OutcomeInserted
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Err = err
	case prior == fact.Value:
		res.Outcome = OutcomeUnchanged
		res.Prior = prior
	default:
		if err := r.store.UpdateProcedureFact(ctx, fact, prior); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}
		res.Outcome = OutcomeUpdated
		res.Prior = prior
	}
	return res
}

func sortResults(rs []FactResult) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Key < rs[j].Key })
}

// ContactFacts derives proposed contact facts from accepted anchors.
// Only resolved email and phone anchors inside accepted regions
// propose facts; duplicates collapse to one proposal per key and value.
func ContactFacts(doc *Document, anchors []Anchor, regions []Region, verdicts []Classification, now time.Time) []ContactFact {
	accepted := make(map[string]bool)
	for _, c := range verdicts {
		if c.Verdict == VerdictAccepted {
			accepted[c.TargetID] = true
		}
	}
	byID := make(map[string]*Anchor, len(anchors))
	for i := range anchors {
		byID[anchors[i].ID] = &anchors[i]
	}

	seen := make(map[string]bool)
	var out []ContactFact
	for _, reg := range regions {
		if !accepted[reg.ID] {
			continue
		}
		for _, aid := range reg.AnchorIDs {
			a := byID[aid]
			if a == nil || !accepted[a.ID] || !a.Resolved() {
				continue
			}
			if a.Type != AnchorEmail && a.Type != AnchorPhone {
				continue
			}
			dedupe := a.EntityID + "|" + string(a.Type) + "|" + a.Value
			if seen[dedupe] {
				continue
			}
			seen[dedupe] = true
			out = append(out, ContactFact{
				EntityID:     a.EntityID,
				Kind:         a.Type,
				Value:        a.Value,
				SourcePageID: doc.PageID,
				ExtractedAt:  now,
			})
		}
	}
	return out
}
