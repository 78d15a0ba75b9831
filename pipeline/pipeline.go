// Package pipeline orchestrates extraction runs. It fans pages out to a
// bounded worker pool and drives each page through parsing, anchor
// scanning, region building, classification, chunking, procedure
// tagging, structured extraction, reconciliation, and audit annotation.
// A page failure is recorded in its report and never aborts the batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/orgkb/orgkb"
)

// Runner wires the pipeline stages together for a batch run. Source,
// Parser, Index, and Knowledge are required; the remaining dependencies
// are optional and their stages are skipped when nil.
type Runner struct {
	Source    orgkb.PageSource
	Parser    orgkb.Parser
	Converter orgkb.Converter
	Index     *orgkb.Index
	Tagger    *orgkb.Tagger
	Extractor orgkb.Extractor
	Embedder  orgkb.Embedder
	Knowledge orgkb.KnowledgeService
	Artifacts orgkb.ArtifactWriter

	RateLimiter    *Limiter
	RetryDelays    []time.Duration
	Concurrency    int
	ExtractTimeout time.Duration
	Logger         *slog.Logger

	ScanConfig     orgkb.ScanConfig
	RegionConfig   orgkb.RegionConfig
	ClassifyConfig orgkb.ClassifyConfig
	ChunkConfig    orgkb.ChunkConfig
}

// pageResult pairs a page report with its input position so reports
// come out in page order regardless of worker scheduling.
type pageResult struct {
	position int
	report   orgkb.PageReport
}

// Run loads all pages from the source and processes them concurrently.
// The returned report holds one entry per page in input order.
func (r *Runner) Run(ctx context.Context) (*orgkb.RunReport, error) {
	report := &orgkb.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	pages, err := r.Source.LoadPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	scanner := orgkb.NewScanner(r.Index, r.ScanConfig)
	reconciler := orgkb.NewReconciler(r.Knowledge)

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	resultCh := make(chan pageResult, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	go func() {
		for i, page := range pages {
			g.Go(func() error {
				resultCh <- pageResult{position: i, report: r.processPage(gctx, scanner, reconciler, page)}
				return nil
			})
		}
		_ = g.Wait()
		close(resultCh)
	}()

	results := make([]orgkb.PageReport, len(pages))
	for res := range resultCh {
		results[res.position] = res.report
	}
	for _, p := range results {
		report.Add(p)
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// processPage runs every pipeline stage for one page. Fatal stage
// errors (parse, scan, regions) end the page early; later stages
// degrade by recording the error and continuing, so a model outage
// still produces anchors, verdicts, and an audit artifact.
func (r *Runner) processPage(ctx context.Context, scanner *orgkb.Scanner, reconciler *orgkb.Reconciler, page *orgkb.RawPage) orgkb.PageReport {
	report := orgkb.PageReport{PageID: page.PageID, SourceURL: page.SourceURL}
	logger := r.logger().With("page", page.PageID)
	started := time.Now()

	doc, err := r.Parser.Parse(page.PageID, page.SourceURL, page.HTML)
	if err != nil {
		report.Errs = append(report.Errs, "parse: "+err.Error())
		logger.Error("parse failed", "err", err)
		return report
	}

	anchors, err := scanner.Scan(doc)
	if err != nil {
		report.Errs = append(report.Errs, "scan: "+err.Error())
		logger.Error("scan failed", "err", err)
		return report
	}
	report.Anchors = len(anchors)

	regions, err := orgkb.BuildRegions(doc, anchors, r.RegionConfig)
	if err != nil {
		report.Errs = append(report.Errs, "regions: "+err.Error())
		logger.Error("region building failed", "err", err)
		return report
	}
	report.Regions = len(regions)

	verdicts := orgkb.Classify(anchors, regions, r.ClassifyConfig)
	report.CountVerdicts(verdicts)

	chunks := orgkb.ChunkDocument(doc, r.ChunkConfig)
	report.Chunks = len(chunks)

	if r.Embedder != nil && len(chunks) > 0 {
		if err := r.embedChunks(ctx, chunks); err != nil {
			report.Errs = append(report.Errs, "embed: "+err.Error())
			logger.Warn("chunk embedding failed", "err", err)
		}
	}

	var cands []orgkb.ProcedureCandidate
	if r.Tagger != nil {
		cands, err = r.Tagger.Tag(ctx, doc, chunks)
		if err != nil {
			report.Errs = append(report.Errs, "tag: "+err.Error())
			logger.Warn("procedure tagging degraded", "err", err)
		}
		report.Candidates = len(cands)
	}

	now := time.Now().UTC()
	facts, extractErrs, unresolved := r.extractFacts(ctx, logger, doc, cands, now)
	report.Errs = append(report.Errs, extractErrs...)
	report.Unresolved = unresolved

	if r.Knowledge != nil {
		contacts := orgkb.ContactFacts(doc, anchors, regions, verdicts, now)
		report.CountFacts(reconciler.ReconcileContacts(ctx, contacts))
		report.CountFacts(reconciler.ReconcileFacts(ctx, facts))
	}

	if r.Knowledge != nil && len(chunks) > 0 {
		if err := r.Knowledge.CreateChunks(ctx, page.PageID, chunks); err != nil {
			report.Errs = append(report.Errs, "chunks: "+err.Error())
			logger.Warn("chunk storage failed", "err", err)
		}
	}

	if r.Artifacts != nil {
		html := orgkb.Annotate(doc, anchors, regions, verdicts, cands)
		if err := r.Artifacts.WriteArtifact(ctx, page.PageID, html); err != nil {
			report.Errs = append(report.Errs, "artifact: "+err.Error())
			logger.Warn("artifact write failed", "err", err)
		}
	}

	logger.Info("page processed",
		"anchors", report.Anchors,
		"regions", report.Regions,
		"candidates", report.Candidates,
		"chunks", report.Chunks,
		"conflicts", report.FactsConflicted,
		"duration", time.Since(started),
	)
	return report
}

// embedChunks fills in chunk vectors in place. One batch call covers
// the whole page; the tagger and the knowledge store both reuse the
// vectors afterwards.
func (r *Runner) embedChunks(ctx context.Context, chunks []orgkb.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].EmbeddingText
	}

	if err := r.wait(ctx, limitEmbed); err != nil {
		return err
	}

	var vecs [][]float32
	err := CallWithRetryDelays(ctx, func(ctx context.Context) error {
		var err error
		vecs, err = r.Embedder.EmbedBatch(ctx, texts)
		return err
	}, r.logger(), r.retryDelays())
	if err != nil {
		return err
	}
	if len(vecs) != len(chunks) {
		return orgkb.Errorf(orgkb.EINTERNAL, "embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	return nil
}

// extractFacts runs structured extraction for each tagged procedure and
// turns validated fields into proposed facts. One extraction per
// procedure per page: when a procedure matched several spans, the
// strongest candidate supplies the context window. The third return
// counts procedures whose extraction call failed outright; those stay
// unresolved for this run but do not block the rest of the page.
func (r *Runner) extractFacts(ctx context.Context, logger *slog.Logger, doc *orgkb.Document, cands []orgkb.ProcedureCandidate, now time.Time) ([]orgkb.ProcedureFact, []string, int) {
	if r.Extractor == nil || r.Tagger == nil || len(cands) == 0 {
		return nil, nil, 0
	}

	best := bestPerProcedure(cands)
	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var facts []orgkb.ProcedureFact
	var errs []string
	var unresolved int
	for _, id := range ids {
		cand := best[id]
		proc := r.Tagger.Procedure(id)
		if proc == nil || len(proc.Schema.Fields) == 0 {
			continue
		}

		contextText := cand.Context
		if cand.WholePage && r.Converter != nil {
			// Whole-page extraction reads the page as markdown: headings
			// and lists survive, navigation noise does not.
			if md, err := r.Converter.Convert(doc.RawHTML); err == nil && md != "" {
				contextText = md
			}
		}

		fields, err := r.extractOne(ctx, proc.Schema, contextText)
		if err != nil {
			errs = append(errs, "extract "+id+": "+err.Error())
			unresolved++
			logger.Warn("extraction failed", "procedure", id, "err", err)
			continue
		}
		if err := proc.Schema.Validate(fields); err != nil {
			errs = append(errs, "extract "+id+": "+err.Error())
			logger.Warn("extraction output rejected", "procedure", id, "err", err)
			continue
		}

		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			facts = append(facts, orgkb.ProcedureFact{
				ProcedureID:  id,
				Field:        name,
				Value:        fields[name],
				SourcePageID: doc.PageID,
				ExtractedAt:  now,
			})
		}
	}
	return facts, errs, unresolved
}

func (r *Runner) extractOne(ctx context.Context, schema orgkb.Schema, contextText string) (map[string]string, error) {
	if err := r.wait(ctx, limitExtract); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.extractTimeout())
	defer cancel()

	var fields map[string]string
	err := CallWithRetryDelays(ctx, func(ctx context.Context) error {
		var err error
		fields, err = r.Extractor.ExtractStructured(ctx, schema, contextText)
		return err
	}, r.logger(), r.retryDelays())
	return fields, err
}

// bestPerProcedure keeps the strongest candidate per procedure: rule
// beats fuzzy beats embedding, then higher score, then earlier span.
func bestPerProcedure(cands []orgkb.ProcedureCandidate) map[string]*orgkb.ProcedureCandidate {
	rank := map[orgkb.MatchMethod]int{
		orgkb.MatchRule:      0,
		orgkb.MatchFuzzy:     1,
		orgkb.MatchEmbedding: 2,
	}
	stronger := func(a, b *orgkb.ProcedureCandidate) bool {
		if rank[a.Method] != rank[b.Method] {
			return rank[a.Method] < rank[b.Method]
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Span.Start < b.Span.Start
	}

	best := make(map[string]*orgkb.ProcedureCandidate)
	for i := range cands {
		c := &cands[i]
		if prev, ok := best[c.ProcedureID]; !ok || stronger(c, prev) {
			best[c.ProcedureID] = c
		}
	}
	return best
}

func (r *Runner) wait(ctx context.Context, op string) error {
	if r.RateLimiter == nil {
		return nil
	}
	return r.RateLimiter.Wait(ctx, op)
}

func (r *Runner) retryDelays() []time.Duration {
	if r.RetryDelays != nil {
		return r.RetryDelays
	}
	return DefaultRetryDelays()
}

func (r *Runner) extractTimeout() time.Duration {
	if r.ExtractTimeout > 0 {
		return r.ExtractTimeout
	}
	return 60 * time.Second
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}
