package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/a11yscan/a11yscan/internal/browser"
	"github.com/a11yscan/a11yscan/internal/model"
)

// defaultLinkTimeout bounds link extraction on a fetched page. A slow or
// failed extraction degrades to zero new links instead of failing the page.
const defaultLinkTimeout = 10 * time.Second

// Crawler discovers pages breadth-first from a seed URL.
// One Crawler instance owns one crawl: the visited set and frontier are
// not shared, so a fresh instance is needed per invocation.
type Crawler struct {
	session     browser.Session
	logger      *slog.Logger
	linkTimeout time.Duration
	robots      *robotsCache

	visited map[string]bool
	queued  map[string]bool
	failed  []model.FailedPage
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithLinkTimeout sets the link-extraction time bound.
func WithLinkTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.linkTimeout = d
	}
}

// WithRobotsClient sets the HTTP client and user agent used to fetch
// robots.txt. Only consulted when the policy enables robots checks.
func WithRobotsClient(client *http.Client, userAgent string) Option {
	return func(c *Crawler) {
		c.robots = newRobotsCache(client, userAgent)
	}
}

// New creates a Crawler that fetches pages through the given session.
//
// Design decision: We require an external session because transport
// concerns (plain HTTP vs headless browser, proxies, headers) are owned
// by the browser package, and tests can substitute a fake.
func New(session browser.Session, opts ...Option) *Crawler {
	c := &Crawler{
		session:     session,
		linkTimeout: defaultLinkTimeout,
		visited:     make(map[string]bool),
		queued:      make(map[string]bool),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// frontierItem is one frontier queue entry.
type frontierItem struct {
	url   string
	depth int
	from  string
}

// Crawl walks the site starting at seedURL under the given policy and
// returns the successfully fetched pages sorted by (depth, url).
//
// Pages that exhaust their retries are recorded as failed (retrievable
// via Failed) and never abort the crawl. Policy skips (domain, pattern,
// robots) are silent: they are neither results nor failures.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, policy Policy) ([]*model.PageRef, error) {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}
	if seed.Scheme != "http" && seed.Scheme != "https" {
		seed.Scheme = "http"
	}

	results := make([]*model.PageRef, 0)
	frontier := []frontierItem{{url: normalizeURL(seed.String()), depth: 0}}
	c.queued[frontier[0].url] = true

	for len(frontier) > 0 && len(results) < policy.MaxPages {
		select {
		case <-ctx.Done():
			sortPages(results)
			return results, ctx.Err()
		default:
		}

		item := frontier[0]
		frontier = frontier[1:]

		if c.visited[item.url] {
			continue
		}
		if !c.admit(ctx, seed.Host, item, policy) {
			continue
		}
		c.visited[item.url] = true

		page, err := c.fetchWithRetry(ctx, item, policy)
		if err != nil {
			c.logger.Warn("page failed after retries",
				"url", item.url,
				"depth", item.depth,
				"error", err,
			)
			c.failed = append(c.failed, model.FailedPage{
				URL:    item.url,
				Depth:  item.depth,
				Reason: err.Error(),
			})
			continue
		}

		results = append(results, page)
		c.logger.Debug("page fetched",
			"url", page.URL,
			"depth", page.Depth,
			"status", page.StatusCode,
		)

		if page.StatusCode == http.StatusOK && item.depth < policy.MaxDepth {
			for _, link := range c.extractLinks(ctx) {
				link = normalizeURL(link)
				if c.visited[link] || c.queued[link] {
					continue
				}
				c.queued[link] = true
				frontier = append(frontier, frontierItem{
					url:   link,
					depth: item.depth + 1,
					from:  item.url,
				})
			}
		}

		// Politeness delay between fetches.
		if policy.RequestDelay > 0 && len(frontier) > 0 {
			select {
			case <-ctx.Done():
				sortPages(results)
				return results, ctx.Err()
			case <-time.After(policy.RequestDelay):
			}
		}
	}

	sortPages(results)
	return results, nil
}

// Failed returns the pages that exhausted their retries, in discovery order.
func (c *Crawler) Failed() []model.FailedPage {
	return c.failed
}

// admit applies the policy skip rules to a frontier item. Skips are
// silent by design: an excluded URL is not an error.
func (c *Crawler) admit(ctx context.Context, seedHost string, item frontierItem, policy Policy) bool {
	if item.depth > policy.MaxDepth {
		return false
	}

	u, err := url.Parse(item.url)
	if err != nil {
		return false
	}
	if !policy.allowsDomain(seedHost, u.Host) {
		return false
	}
	if !policy.allowsPath(u.Path) {
		return false
	}

	if policy.RespectRobots {
		if c.robots == nil {
			c.robots = newRobotsCache(nil, "a11yscan")
		}
		if !c.robots.allowed(ctx, item.url) {
			c.logger.Debug("disallowed by robots.txt", "url", item.url)
			return false
		}
	}

	return true
}

// fetchWithRetry navigates to the item's URL, retrying transient
// failures with a growing backoff. Attempt N waits RetryDelay * (N+1)
// before running.
func (c *Crawler) fetchWithRetry(ctx context.Context, item frontierItem, policy Policy) (*model.PageRef, error) {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := policy.RetryDelay * time.Duration(attempt+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			c.logger.Debug("retrying fetch", "url", item.url, "attempt", attempt)
		}

		nav, err := c.session.Navigate(ctx, item.url)
		if err != nil {
			lastErr = err
			continue
		}

		return &model.PageRef{
			URL:            item.url,
			Depth:          item.depth,
			DiscoveredFrom: item.from,
			StatusCode:     nav.StatusCode,
			Title:          nav.Title,
			LoadTime:       nav.LoadTime,
			FetchedAt:      time.Now(),
		}, nil
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", policy.MaxRetries+1, lastErr)
}

// extractLinks pulls outbound links from the current page, bounded by
// the link timeout. Extraction failure degrades to zero new links.
func (c *Crawler) extractLinks(ctx context.Context) []string {
	linkCtx, cancel := context.WithTimeout(ctx, c.linkTimeout)
	defer cancel()

	links, err := c.session.Links(linkCtx)
	if err != nil {
		c.logger.Debug("link extraction failed", "error", err)
		return nil
	}
	return links
}

// sortPages orders results by (depth, url) so consumers see a
// deterministic breadth-first order regardless of fetch interleaving.
func sortPages(pages []*model.PageRef) {
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Depth != pages[j].Depth {
			return pages[i].Depth < pages[j].Depth
		}
		return pages[i].URL < pages[j].URL
	})
}
