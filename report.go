package orgkb

import "time"

// PageReport summarizes what the pipeline did with one page. Every
// anchor, region, and fact the page produced is accounted for here so
// nothing is lost silently.
type PageReport struct {
	PageID    string `json:"pageId"`
	SourceURL string `json:"sourceUrl,omitempty"`

	Anchors    int `json:"anchors"`
	Regions    int `json:"regions"`
	Accepted   int `json:"accepted"`
	Dropped    int `json:"dropped"`
	Ambiguous  int `json:"ambiguous"`
	Candidates int `json:"candidates"`
	Chunks     int `json:"chunks"`

	FactsInserted   int `json:"factsInserted"`
	FactsUpdated    int `json:"factsUpdated"`
	FactsUnchanged  int `json:"factsUnchanged"`
	FactsConflicted int `json:"factsConflicted"`
	FactsFailed     int `json:"factsFailed"`

	// Unresolved counts candidates whose structured extraction call
	// failed, so no fact was produced for them.
	Unresolved int `json:"unresolved"`

	// DropReasons counts dropped and ambiguous verdicts by reason.
	DropReasons map[string]int `json:"dropReasons,omitempty"`

	// Conflicts lists the fact keys left untouched because the stored
	// value differed.
	Conflicts []FactResult `json:"conflicts,omitempty"`

	Errs []string `json:"errors,omitempty"`
}

// CountVerdicts folds classification verdicts into the report.
func (r *PageReport) CountVerdicts(verdicts []Classification) {
	for _, c := range verdicts {
		switch c.Verdict {
		case VerdictAccepted:
			r.Accepted++
		case VerdictDropped:
			r.Dropped++
			r.countReason(c.Reason)
		case VerdictAmbiguous:
			r.Ambiguous++
			r.countReason(c.Reason)
		}
	}
}

func (r *PageReport) countReason(reason string) {
	if reason == "" {
		return
	}
	if r.DropReasons == nil {
		r.DropReasons = make(map[string]int)
	}
	r.DropReasons[reason]++
}

// CountFacts folds reconciliation results into the report.
func (r *PageReport) CountFacts(results []FactResult) {
	for _, res := range results {
		switch res.Outcome {
		case OutcomeInserted:
			r.FactsInserted++
		case OutcomeUpdated:
			r.FactsUpdated++
		case OutcomeUnchanged:
			r.FactsUnchanged++
		case OutcomeConflict:
			r.FactsConflicted++
			r.Conflicts = append(r.Conflicts, res)
		case OutcomeFailed:
			r.FactsFailed++
			if res.Err != nil {
				r.Errs = append(r.Errs, res.Key+": "+res.Err.Error())
			}
		}
	}
}

// RunReport aggregates page reports for one pipeline run.
type RunReport struct {
	RunID      string       `json:"runId"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Pages      []PageReport `json:"pages"`
	Failed     int          `json:"failedPages"`
}

// Add appends a page report and updates aggregates.
func (r *RunReport) Add(p PageReport) {
	r.Pages = append(r.Pages, p)
	if len(p.Errs) > 0 {
		r.Failed++
	}
}

// Totals sums the per-page counters.
func (r *RunReport) Totals() PageReport {
	var t PageReport
	t.PageID = "total"
	for _, p := range r.Pages {
		t.Anchors += p.Anchors
		t.Regions += p.Regions
		t.Accepted += p.Accepted
		t.Dropped += p.Dropped
		t.Ambiguous += p.Ambiguous
		t.Candidates += p.Candidates
		t.Chunks += p.Chunks
		t.FactsInserted += p.FactsInserted
		t.FactsUpdated += p.FactsUpdated
		t.FactsUnchanged += p.FactsUnchanged
		t.FactsConflicted += p.FactsConflicted
		t.FactsFailed += p.FactsFailed
		t.Unresolved += p.Unresolved
		for reason, n := range p.DropReasons {
			if t.DropReasons == nil {
				t.DropReasons = make(map[string]int)
			}
			t.DropReasons[reason] += n
		}
	}
	return t
}
