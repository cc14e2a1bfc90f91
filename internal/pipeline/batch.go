package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a11yscan/a11yscan/internal/model"
)

// Batch size adaptation thresholds. The batch size shrinks toward the
// floor when the cache stops helping or memory runs hot, and grows
// toward the ceiling when the cache absorbs most work or memory is
// comfortable.
const (
	lowHitRate    = 0.3
	highHitRate   = 0.7
	highHeapUsage = 0.8
	lowHeapUsage  = 0.4

	defaultBatchFloor   = 2
	defaultBatchSize    = 8
	defaultBatchCeiling = 32

	// maxConcurrentBatches bounds how many batches run at once.
	maxConcurrentBatches = 3
)

// Batch is a group of same-domain pages analyzed together to amortize
// per-domain overhead.
type Batch struct {
	Domain string
	Pages  []*model.PageRef
}

// BatchProcessor plans and runs same-domain page batches.
//
// Design decision: We use errgroup.SetLimit rather than reusing the
// worker pool because batches are a coarser unit than tasks. Each batch
// gets its own goroutine, but only maxConcurrentBatches run
// simultaneously; batches within one domain are additionally spaced by
// a per-domain delay so no single target is overloaded.
type BatchProcessor struct {
	logger      *slog.Logger
	concurrency int

	floor   int
	ceiling int
	size    int

	domainDelay time.Duration

	// hitRate and heapUsage are probes sampled before each plan. They
	// are injectable so adaptation is testable without real pressure.
	hitRate   func() float64
	heapUsage func() float64

	mu           sync.Mutex
	lastDispatch map[string]time.Time
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithBatchBounds sets the floor, starting size, and ceiling for the
// adaptive batch size.
func WithBatchBounds(floor, size, ceiling int) BatchOption {
	return func(b *BatchProcessor) {
		if floor > 0 && size >= floor && ceiling >= size {
			b.floor, b.size, b.ceiling = floor, size, ceiling
		}
	}
}

// WithDomainDelay spaces consecutive batches of the same domain.
func WithDomainDelay(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d >= 0 {
			b.domainDelay = d
		}
	}
}

// WithHitRateProbe sets the cache hit-rate sampler.
func WithHitRateProbe(probe func() float64) BatchOption {
	return func(b *BatchProcessor) {
		b.hitRate = probe
	}
}

// WithHeapUsageProbe sets the heap pressure sampler.
func WithHeapUsageProbe(probe func() float64) BatchOption {
	return func(b *BatchProcessor) {
		b.heapUsage = probe
	}
}

// NewBatchProcessor creates a BatchProcessor with default bounds.
func NewBatchProcessor(opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{
		concurrency:  maxConcurrentBatches,
		floor:        defaultBatchFloor,
		size:         defaultBatchSize,
		ceiling:      defaultBatchCeiling,
		heapUsage:    heapUsage,
		lastDispatch: make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.hitRate == nil {
		b.hitRate = func() float64 { return 0.5 }
	}

	return b
}

// Size returns the current batch size.
func (b *BatchProcessor) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// adapt resizes the batch based on the sampled cache hit-rate and heap
// pressure. Shrinking wins when both directions apply.
func (b *BatchProcessor) adapt() int {
	hit := b.hitRate()
	heap := b.heapUsage()

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case hit < lowHitRate || heap > highHeapUsage:
		b.size = max(b.floor, b.size/2)
	case hit > highHitRate || heap < lowHeapUsage:
		grown := b.size + max(1, b.size/4)
		b.size = min(b.ceiling, grown)
	}

	b.logger.Debug("batch size adapted",
		"size", b.size,
		"hit_rate", hit,
		"heap_usage", heap,
	)
	return b.size
}

// Plan groups pages by domain and chunks each group into batches of the
// current adaptive size. Input order is preserved within a domain.
func (b *BatchProcessor) Plan(pages []*model.PageRef) []Batch {
	size := b.adapt()

	byDomain := make(map[string][]*model.PageRef)
	domains := make([]string, 0)
	for _, page := range pages {
		domain := pageDomain(page.URL)
		if _, ok := byDomain[domain]; !ok {
			domains = append(domains, domain)
		}
		byDomain[domain] = append(byDomain[domain], page)
	}

	batches := make([]Batch, 0, len(domains))
	for _, domain := range domains {
		group := byDomain[domain]
		for start := 0; start < len(group); start += size {
			end := min(start+size, len(group))
			batches = append(batches, Batch{Domain: domain, Pages: group[start:end]})
		}
	}
	return batches
}

// Process runs fn for every batch, at most maxConcurrentBatches at a
// time. Batches of different domains run fully in parallel; batches of
// the same domain are spaced by the domain delay. A batch error is
// logged and does not stop the others.
func (b *BatchProcessor) Process(ctx context.Context, batches []Batch, fn func(ctx context.Context, batch Batch) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, batch := range batches {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err := b.waitDomainSlot(ctx, batch.Domain); err != nil {
				return err
			}

			if err := fn(ctx, batch); err != nil {
				b.logger.Warn("batch failed",
					"domain", batch.Domain,
					"pages", len(batch.Pages),
					"error", err,
				)
			}
			return nil
		})
	}

	return g.Wait()
}

// waitDomainSlot enforces the per-domain spacing between batches.
func (b *BatchProcessor) waitDomainSlot(ctx context.Context, domain string) error {
	if b.domainDelay <= 0 {
		return nil
	}

	b.mu.Lock()
	now := time.Now()
	next := b.lastDispatch[domain].Add(b.domainDelay)
	if next.Before(now) {
		next = now
	}
	b.lastDispatch[domain] = next
	wait := next.Sub(now)
	b.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pageDomain extracts the host for grouping. Unparseable URLs group
// under the empty domain.
func pageDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// heapUsage samples the live-heap share of the heap the runtime holds.
func heapUsage() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapSys == 0 {
		return 0
	}
	return float64(m.HeapAlloc) / float64(m.HeapSys)
}
