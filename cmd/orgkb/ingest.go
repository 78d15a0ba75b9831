package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/orgkb/orgkb"
	"github.com/orgkb/orgkb/fs"
	"github.com/orgkb/orgkb/goquery"
	"github.com/orgkb/orgkb/htmltomarkdown"
	"github.com/orgkb/orgkb/pipeline"
	orgkbslog "github.com/orgkb/orgkb/slog"
)

// Run executes the ingest command.
func (c *IngestCmd) Run(deps *Dependencies) error {
	entities, err := deps.Entities.FindEntities(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}
	if len(entities) == 0 {
		return fmt.Errorf("entity cache is empty. Run 'orgkb sync' first")
	}
	units, err := deps.Entities.FindUnits(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}

	index, err := orgkb.BuildIndex(entities, units)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}

	var tagger *orgkb.Tagger
	if c.Catalog != "" {
		procs, err := fs.LoadCatalog(c.Catalog)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
			return err
		}
		tagger, err = orgkb.NewTagger(procs, deps.Embedder, orgkb.DefaultTagConfig())
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stdout, "Loaded %d procedures from %s\n", len(procs), c.Catalog)
	}

	runner := &pipeline.Runner{
		Source:      fs.NewPageStore(c.Dir),
		Parser:      goquery.NewParser(),
		Converter:   htmltomarkdown.NewConverter(),
		Index:       index,
		Tagger:      tagger,
		Extractor:   deps.Extractor,
		Embedder:    deps.Embedder,
		Knowledge:   orgkbslog.NewLoggingKnowledgeService(deps.Knowledge, deps.Logger),
		Artifacts:   fs.NewWriter(c.Artifacts),
		RateLimiter: pipeline.NewLimiter(c.RPS),
		Concurrency: c.Concurrency,
		Logger:      deps.Logger,
		ScanConfig:  orgkb.ScanConfig{EmailDomain: c.EmailDomain},
		ChunkConfig: orgkb.DefaultChunkConfig(),
	}

	fmt.Fprintf(deps.Stdout, "Indexed %d entities, %d units\n", len(entities), len(units))

	report, err := runner.Run(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", orgkb.ErrorMessage(err))
		return err
	}

	if data, err := json.Marshal(report); err == nil {
		if err := deps.Knowledge.InsertRun(deps.Ctx, report, string(data)); err != nil {
			fmt.Fprintf(deps.Stderr, "warning: failed to record run: %v\n", err)
		}
	}

	printRunReport(deps.Stdout, report)
	return nil
}

// printRunReport prints a run summary, per-page errors, and conflicts.
func printRunReport(w io.Writer, report *orgkb.RunReport) {
	t := report.Totals()
	fmt.Fprintf(w, "Run %s: %d pages, %d failed\n", report.RunID, len(report.Pages), report.Failed)
	fmt.Fprintf(w, "  anchors %d, regions %d, candidates %d, chunks %d\n",
		t.Anchors, t.Regions, t.Candidates, t.Chunks)
	fmt.Fprintf(w, "  verdicts: %d accepted, %d dropped, %d ambiguous\n",
		t.Accepted, t.Dropped, t.Ambiguous)
	fmt.Fprintf(w, "  facts: %d inserted, %d updated, %d unchanged, %d conflicts, %d failed, %d unresolved\n",
		t.FactsInserted, t.FactsUpdated, t.FactsUnchanged, t.FactsConflicted, t.FactsFailed, t.Unresolved)

	for _, p := range report.Pages {
		for _, conflict := range p.Conflicts {
			fmt.Fprintf(w, "  conflict %s: %s (stored %q)\n", p.PageID, conflict.Key, conflict.Prior)
		}
		if len(p.Errs) > 0 {
			fmt.Fprintf(w, "  %s: %s\n", p.PageID, strings.Join(p.Errs, "; "))
		}
	}
}
