package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/a11yscan/a11yscan/internal/analyzer"
	"github.com/a11yscan/a11yscan/internal/browser"
	"github.com/a11yscan/a11yscan/internal/cache"
	"github.com/a11yscan/a11yscan/internal/config"
	"github.com/a11yscan/a11yscan/internal/crawler"
	"github.com/a11yscan/a11yscan/internal/model"
)

// Crawler discovers the pages of a site. Satisfied by crawler.Crawler.
type Crawler interface {
	Crawl(ctx context.Context, seedURL string, policy crawler.Policy) ([]*model.PageRef, error)
	Failed() []model.FailedPage
}

// Orchestrator runs the full audit: crawl, cache-checked per-page
// analysis on the worker pool, merge, and site-wide summary.
//
// Failures at the page level are recovered locally: the page lands in
// the failed-pages list with a reason, and the run continues. Only
// configuration errors (no analyzers registered, unreachable seed) are
// fatal to the whole run.
type Orchestrator struct {
	crawler   Crawler
	sessions  browser.Factory
	analyzers []analyzer.Analyzer

	cache    *cache.AnalysisCache
	cacheTTL time.Duration

	batches  *BatchProcessor
	poolOpts []PoolOption

	logger   *slog.Logger
	progress ProgressFunc

	options      model.AnalysisOptions
	maxRetries   int
	awaitTimeout time.Duration
	topN         int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets a custom logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithCache enables the analysis cache with the given TTL.
func WithCache(c *cache.AnalysisCache, ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cache = c
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithAnalysisOptions sets the per-page analysis options.
func WithAnalysisOptions(opts model.AnalysisOptions) OrchestratorOption {
	return func(o *Orchestrator) {
		o.options = opts
	}
}

// WithTaskRetries sets the retry budget for analysis tasks.
func WithTaskRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithTopViolations sets how many entries the most-common-violations
// ranking holds.
func WithTopViolations(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.topN = n
		}
	}
}

// WithBatchProcessor overrides the batching layer.
func WithBatchProcessor(b *BatchProcessor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.batches = b
	}
}

// WithAwaitTimeout caps how long the orchestrator waits for any single
// task to reach a terminal state. When unset, the cap is derived from
// the pool's per-attempt timeout and the retry budget.
func WithAwaitTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.awaitTimeout = d
		}
	}
}

// WithPoolOptions forwards options to the worker pool created per run.
func WithPoolOptions(opts ...PoolOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.poolOpts = opts
	}
}

// NewOrchestrator creates an Orchestrator. The session factory provides
// one browser session per analyzed page; analyzers run against it in
// registration order.
func NewOrchestrator(c Crawler, sessions browser.Factory, analyzers []analyzer.Analyzer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		crawler:    c,
		sessions:   sessions,
		analyzers:  analyzers,
		cacheTTL:   config.DefaultCacheTTL,
		options:    model.DefaultAnalysisOptions(),
		maxRetries: config.DefaultMaxRetries,
		topN:       config.DefaultTopViolations,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.batches == nil {
		probes := make([]BatchOption, 0, 2)
		probes = append(probes, WithBatchLogger(o.logger))
		if o.cache != nil {
			probes = append(probes, WithHitRateProbe(func() float64 {
				return o.cache.Stats().HitRate()
			}))
		}
		o.batches = NewBatchProcessor(probes...)
	}

	return o
}

// Run audits the site rooted at seedURL and returns the finished
// report. Zero registered analyzers is a configuration error and fatal;
// individual page failures are recorded and never abort the run.
func (o *Orchestrator) Run(ctx context.Context, seedURL string, policy crawler.Policy) (*model.SiteReport, error) {
	if len(o.analyzers) == 0 {
		return nil, analyzer.ErrNoAnalyzers
	}

	start := time.Now()
	o.emit("crawl", 0, fmt.Sprintf("crawling %s", seedURL))

	pages, err := o.crawler.Crawl(ctx, seedURL, policy)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", seedURL, err)
	}

	o.logger.Info("crawl complete",
		"seed", seedURL,
		"pages", len(pages),
		"failed", len(o.crawler.Failed()),
	)
	o.emit("analyze", 20, fmt.Sprintf("analyzing %d pages", len(pages)))

	pool := NewWorkerPool(o.analyzePage, o.poolOpts...)
	pool.Start(ctx)

	results := o.runAnalysis(ctx, pool, pages)

	if err := pool.Shutdown(ctx); err != nil {
		o.logger.Warn("worker pool shutdown interrupted", "error", err)
	}

	o.emit("summarize", 90, "building site report")
	report := o.buildReport(seedURL, pages, results, time.Since(start))
	o.emit("done", 100, fmt.Sprintf("audit complete: %d pages, %d violations",
		report.Summary.PagesAnalyzed, report.Summary.TotalViolations))

	return report, nil
}

// runAnalysis submits every page through the batching layer and awaits
// all results. The returned map is keyed by page URL.
func (o *Orchestrator) runAnalysis(ctx context.Context, pool *WorkerPool, pages []*model.PageRef) map[string]*TaskResult {
	var mu sync.Mutex
	results := make(map[string]*TaskResult, len(pages))
	analyzed := 0
	await := o.awaitBudget(pool)

	batches := o.batches.Plan(pages)

	err := o.batches.Process(ctx, batches, func(ctx context.Context, batch Batch) error {
		for _, page := range batch.Pages {
			task := &model.AnalysisTask{
				URL:        page.URL,
				Type:       model.TaskTypeSinglePage,
				Priority:   priorityForDepth(page.Depth),
				Options:    o.options,
				MaxRetries: o.maxRetries,
			}

			id, err := pool.Submit(task)
			if err != nil {
				mu.Lock()
				results[page.URL] = &TaskResult{Task: task, Err: err}
				mu.Unlock()
				continue
			}

			result, err := pool.AwaitResult(ctx, id, await)
			if err != nil {
				result = &TaskResult{Task: task, Err: err}
			}

			mu.Lock()
			results[page.URL] = result
			analyzed++
			done := analyzed
			mu.Unlock()

			if len(pages) > 0 {
				percent := 20 + 70*float64(done)/float64(len(pages))
				o.emit("analyze", percent, fmt.Sprintf("analyzed %d/%d pages", done, len(pages)))
			}
		}
		return nil
	})
	if err != nil {
		o.logger.Warn("analysis interrupted", "error", err)
	}

	return results
}

// awaitSlack absorbs time a submitted task spends queued behind other
// tasks before its first attempt starts.
const awaitSlack = 30 * time.Second

// awaitBudget bounds a single AwaitResult call. A task may legitimately
// burn its per-attempt timeout on every attempt before reaching a
// terminal state, so the derived budget covers the full retry ladder.
func (o *Orchestrator) awaitBudget(pool *WorkerPool) time.Duration {
	if o.awaitTimeout > 0 {
		return o.awaitTimeout
	}
	return pool.TaskTimeout()*time.Duration(o.maxRetries+1) + awaitSlack
}

// analyzePage is the worker-pool task body: consult the cache, on miss
// run every analyzer against a fresh session and merge the survivors.
func (o *Orchestrator) analyzePage(ctx context.Context, task *model.AnalysisTask) (*model.PageReport, error) {
	start := time.Now()
	computed := false
	var survivors []string

	compute := func(ctx context.Context) ([]model.Violation, error) {
		computed = true
		violations, tools, err := o.runAnalyzers(ctx, task)
		survivors = tools
		return violations, err
	}

	var violations []model.Violation
	var err error
	if o.cache != nil {
		key := cache.Fingerprint(task.URL, task.Options)
		violations, err = o.cache.GetOrCompute(ctx, key, compute, o.cacheTTL)
	} else {
		violations, err = compute(ctx)
	}
	if err != nil {
		return nil, err
	}

	if !computed {
		// Served from cache; every registered analyzer contributed to
		// the stored result or its surviving subset.
		survivors = o.analyzerNames()
	}

	return &model.PageReport{
		URL:        task.URL,
		Violations: violations,
		Analyzers:  survivors,
		Duration:   time.Since(start),
		FromCache:  !computed,
	}, nil
}

// runAnalyzers loads the page once and runs every registered analyzer
// against it. One analyzer failing degrades the result to the
// survivors; the page fails only when all analyzers fail.
func (o *Orchestrator) runAnalyzers(ctx context.Context, task *model.AnalysisTask) ([]model.Violation, []string, error) {
	session, err := o.sessions()
	if err != nil {
		return nil, nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close() //nolint:errcheck // teardown error has no recovery

	if _, err := session.Navigate(ctx, task.URL); err != nil {
		return nil, nil, fmt.Errorf("navigate %s: %w", task.URL, err)
	}

	target := analyzer.Target{
		URL:       task.URL,
		Options:   task.Options,
		Evaluator: session,
	}

	lists := make([][]model.Violation, 0, len(o.analyzers))
	survivors := make([]string, 0, len(o.analyzers))
	var lastErr error

	for _, a := range o.analyzers {
		violations, err := a.Analyze(ctx, target)
		if err != nil {
			lastErr = err
			o.logger.Warn("analyzer failed, degrading to survivors",
				"analyzer", a.Name(),
				"url", task.URL,
				"error", err,
			)
			continue
		}
		lists = append(lists, violations)
		survivors = append(survivors, a.Name())
	}

	if len(survivors) == 0 {
		return nil, nil, fmt.Errorf("all analyzers failed for %s: %w", task.URL, lastErr)
	}

	return analyzer.Merge(lists...), survivors, nil
}

func (o *Orchestrator) analyzerNames() []string {
	names := make([]string, 0, len(o.analyzers))
	for _, a := range o.analyzers {
		names = append(names, a.Name())
	}
	return names
}

// buildReport folds per-page results into the site-wide report.
func (o *Orchestrator) buildReport(seedURL string, pages []*model.PageRef, results map[string]*TaskResult, elapsed time.Duration) *model.SiteReport {
	report := &model.SiteReport{
		SiteURL:          seedURL,
		Timestamp:        time.Now(),
		ViolationsByType: make(map[string]int),
		FailedPages:      append([]model.FailedPage(nil), o.crawler.Failed()...),
	}

	severity := make(map[string]int)
	compliant := 0
	totalViolations := 0

	// Pages arrive sorted by (depth, url); page reports keep that order.
	for _, page := range pages {
		result, ok := results[page.URL]
		if !ok || result.Err != nil {
			reason := "analysis did not complete"
			if ok && result.Err != nil {
				reason = result.Err.Error()
			}
			report.FailedPages = append(report.FailedPages, model.FailedPage{
				URL:    page.URL,
				Depth:  page.Depth,
				Reason: reason,
			})
			continue
		}

		pageReport := *result.Report
		pageReport.Depth = page.Depth
		report.PageReports = append(report.PageReports, pageReport)

		if pageReport.Compliant() {
			compliant++
		}
		for _, v := range pageReport.Violations {
			severity[v.Impact.String()] += v.Occurrences
			report.ViolationsByType[v.ID] += v.Occurrences
			totalViolations += v.Occurrences
		}
	}

	analyzed := len(report.PageReports)
	summary := model.Summary{
		PagesCrawled:         len(pages),
		PagesAnalyzed:        analyzed,
		PagesFailed:          len(report.FailedPages),
		TotalViolations:      totalViolations,
		ViolationsBySeverity: severity,
		Duration:             elapsed,
	}
	if analyzed > 0 {
		summary.CompliancePercent = 100 * float64(compliant) / float64(analyzed)
	}
	report.Summary = summary
	report.MostCommonViolations = topViolations(report.PageReports, o.topN)

	return report
}

// topViolations ranks rules by total occurrence count across all pages,
// breaking ties by the number of affected pages.
func topViolations(pages []model.PageReport, n int) []model.ViolationFrequency {
	byID := make(map[string]*model.ViolationFrequency)
	for _, page := range pages {
		seen := make(map[string]bool)
		for _, v := range page.Violations {
			freq, ok := byID[v.ID]
			if !ok {
				freq = &model.ViolationFrequency{
					ID:          v.ID,
					Description: v.Description,
					Impact:      v.Impact,
					ImpactText:  v.ImpactText,
				}
				byID[v.ID] = freq
			}
			freq.Occurrences += v.Occurrences
			if v.Impact > freq.Impact {
				freq.Impact = v.Impact
				freq.ImpactText = v.Impact.String()
			}
			if !seen[v.ID] {
				freq.AffectedPages++
				seen[v.ID] = true
			}
		}
	}

	ranked := make([]model.ViolationFrequency, 0, len(byID))
	for _, freq := range byID {
		ranked = append(ranked, *freq)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Occurrences != ranked[j].Occurrences {
			return ranked[i].Occurrences > ranked[j].Occurrences
		}
		if ranked[i].AffectedPages != ranked[j].AffectedPages {
			return ranked[i].AffectedPages > ranked[j].AffectedPages
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// priorityForDepth dispatches shallow pages first: the landing page and
// its direct links carry the most traffic.
func priorityForDepth(depth int) model.Priority {
	switch depth {
	case 0:
		return model.PriorityHigh
	case 1:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// emit sends one progress event if an observer is registered.
func (o *Orchestrator) emit(stage string, percent float64, message string) {
	if o.progress == nil {
		return
	}
	o.progress(Progress{Stage: stage, Percent: percent, Message: message})
}
