package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/a11yscan/a11yscan/internal/browser"
	"github.com/a11yscan/a11yscan/internal/model"
)

// fakePage describes one page served by the fake session.
type fakePage struct {
	status       int
	title        string
	links        []string
	failuresLeft int
}

// fakeSession is a test double for browser.Session serving an in-memory
// site graph.
type fakeSession struct {
	pages    map[string]*fakePage
	current  string
	attempts map[string]int
	order    []string
	linkErr  error
}

func newFakeSession(pages map[string]*fakePage) *fakeSession {
	return &fakeSession{
		pages:    pages,
		attempts: make(map[string]int),
	}
}

func (f *fakeSession) Navigate(_ context.Context, pageURL string) (*browser.Navigation, error) {
	f.attempts[pageURL]++
	page, ok := f.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", pageURL)
	}
	if page.failuresLeft > 0 {
		page.failuresLeft--
		return nil, errors.New("navigation timeout")
	}
	f.current = pageURL
	f.order = append(f.order, pageURL)

	status := page.status
	if status == 0 {
		status = 200
	}
	return &browser.Navigation{StatusCode: status, Title: page.title}, nil
}

func (f *fakeSession) Links(_ context.Context) ([]string, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	if page, ok := f.pages[f.current]; ok {
		return page.links, nil
	}
	return nil, nil
}

func (f *fakeSession) Evaluate(_ context.Context, _ string) (json.RawMessage, error) {
	return nil, browser.ErrNotSupported
}

func (f *fakeSession) Screenshot(_ context.Context, _ string) ([]byte, error) {
	return nil, browser.ErrNotSupported
}

func (f *fakeSession) Close() error { return nil }

// testPolicy returns a policy with fast retries and robots disabled.
func testPolicy() Policy {
	return Policy{
		MaxPages:   100,
		MaxDepth:   5,
		MaxRetries: 2,
		RetryDelay: 0,
	}
}

// TestCrawlBFSOrder verifies breadth-first discovery and the final
// (depth, url) ordering.
func TestCrawlBFSOrder(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]*fakePage{
		"http://example.com/": {links: []string{
			"http://example.com/b",
			"http://example.com/a",
		}},
		"http://example.com/b": {links: []string{"http://example.com/deep"}},
		"http://example.com/a": {},
		"http://example.com/deep": {},
	})

	c := New(session)
	pages, err := c.Crawl(context.Background(), "http://example.com/", testPolicy())
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	want := []struct {
		url   string
		depth int
	}{
		{"http://example.com/", 0},
		{"http://example.com/a", 1},
		{"http://example.com/b", 1},
		{"http://example.com/deep", 2},
	}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages, want %d", len(pages), len(want))
	}
	for i, w := range want {
		if pages[i].URL != w.url || pages[i].Depth != w.depth {
			t.Errorf("pages[%d] = {%s, %d}, want {%s, %d}",
				i, pages[i].URL, pages[i].Depth, w.url, w.depth)
		}
	}

	// BFS invariant: every page of depth D+1 was discovered from a page
	// of depth D that is present in the results.
	byURL := make(map[string]*model.PageRef)
	for _, p := range pages {
		byURL[p.URL] = p
	}
	for _, p := range pages {
		if p.Depth == 0 {
			continue
		}
		parent, ok := byURL[p.DiscoveredFrom]
		if !ok {
			t.Errorf("page %s has no crawled parent %s", p.URL, p.DiscoveredFrom)
			continue
		}
		if parent.Depth != p.Depth-1 {
			t.Errorf("page %s at depth %d discovered from depth %d", p.URL, p.Depth, parent.Depth)
		}
	}
}

// TestCrawlBoundary tests the maxPages/maxDepth crawl boundary scenario:
// a seed linking to 5 pages at depth 1 under {maxPages:3, maxDepth:1}
// yields exactly 3 results, all depth <= 1.
func TestCrawlBoundary(t *testing.T) {
	t.Parallel()

	links := make([]string, 0, 5)
	pages := map[string]*fakePage{}
	for i := 0; i < 5; i++ {
		u := fmt.Sprintf("http://example.com/p%d", i)
		links = append(links, u)
		pages[u] = &fakePage{links: []string{"http://example.com/too-deep"}}
	}
	pages["http://example.com/"] = &fakePage{links: links}

	policy := testPolicy()
	policy.MaxPages = 3
	policy.MaxDepth = 1

	c := New(newFakeSession(pages))
	got, err := c.Crawl(context.Background(), "http://example.com/", policy)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d pages, want 3", len(got))
	}
	for _, p := range got {
		if p.Depth > 1 {
			t.Errorf("page %s has depth %d, want <= 1", p.URL, p.Depth)
		}
	}
}

// TestCrawlRetry tests that transient failures are retried and the
// attempt count is bounded.
func TestCrawlRetry(t *testing.T) {
	t.Parallel()

	t.Run("recovers within retry budget", func(t *testing.T) {
		t.Parallel()

		session := newFakeSession(map[string]*fakePage{
			"http://example.com/": {failuresLeft: 2},
		})
		c := New(session)

		pages, err := c.Crawl(context.Background(), "http://example.com/", testPolicy())
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if len(pages) != 1 {
			t.Fatalf("got %d pages, want 1", len(pages))
		}
		if got := session.attempts["http://example.com/"]; got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("records failure after exhausting retries", func(t *testing.T) {
		t.Parallel()

		session := newFakeSession(map[string]*fakePage{
			"http://example.com/": {links: []string{"http://example.com/broken"}},
			"http://example.com/broken": {failuresLeft: 99},
		})
		c := New(session)

		pages, err := c.Crawl(context.Background(), "http://example.com/", testPolicy())
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if len(pages) != 1 {
			t.Errorf("got %d pages, want 1 (seed only)", len(pages))
		}

		failed := c.Failed()
		if len(failed) != 1 {
			t.Fatalf("got %d failed pages, want 1", len(failed))
		}
		if failed[0].URL != "http://example.com/broken" {
			t.Errorf("failed URL = %s, want http://example.com/broken", failed[0].URL)
		}
		// MaxRetries=2 means exactly 3 attempts.
		if got := session.attempts["http://example.com/broken"]; got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})
}

// TestCrawlDomainPolicy tests that other hosts are silently skipped.
func TestCrawlDomainPolicy(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]*fakePage{
		"http://example.com/": {links: []string{
			"http://evil.example/page",
			"http://example.com/ok",
		}},
		"http://example.com/ok":   {},
		"http://evil.example/page": {},
	})
	c := New(session)

	pages, err := c.Crawl(context.Background(), "http://example.com/", testPolicy())
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	for _, p := range pages {
		if p.URL == "http://evil.example/page" {
			t.Error("crawled a page outside the allowed domain")
		}
	}
	if len(pages) != 2 {
		t.Errorf("got %d pages, want 2", len(pages))
	}
	if len(c.Failed()) != 0 {
		t.Errorf("policy skip recorded as failure: %v", c.Failed())
	}
}

// TestCrawlPatterns tests exclude and include path pattern handling.
func TestCrawlPatterns(t *testing.T) {
	t.Parallel()

	t.Run("exclude patterns", func(t *testing.T) {
		t.Parallel()

		session := newFakeSession(map[string]*fakePage{
			"http://example.com/": {links: []string{
				"http://example.com/admin/panel",
				"http://example.com/docs/guide",
			}},
			"http://example.com/admin/panel": {},
			"http://example.com/docs/guide":  {},
		})
		policy := testPolicy()
		policy.ExcludePatterns = []string{"/admin/*"}

		c := New(session)
		pages, err := c.Crawl(context.Background(), "http://example.com/", policy)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		for _, p := range pages {
			if p.URL == "http://example.com/admin/panel" {
				t.Error("crawled an excluded page")
			}
		}
	})

	t.Run("include patterns", func(t *testing.T) {
		t.Parallel()

		session := newFakeSession(map[string]*fakePage{
			"http://example.com/docs/": {links: []string{
				"http://example.com/docs/guide",
				"http://example.com/blog/post",
			}},
			"http://example.com/docs/guide": {},
			"http://example.com/blog/post":  {},
		})
		policy := testPolicy()
		policy.IncludePatterns = []string{"/docs/*"}

		c := New(session)
		pages, err := c.Crawl(context.Background(), "http://example.com/docs/", policy)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		for _, p := range pages {
			if p.URL == "http://example.com/blog/post" {
				t.Error("crawled a page outside the include patterns")
			}
		}
		if len(pages) != 2 {
			t.Errorf("got %d pages, want 2", len(pages))
		}
	})
}

// TestCrawlLinkExtractionFailure tests that a link-extraction failure
// degrades to zero new links rather than failing the page.
func TestCrawlLinkExtractionFailure(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]*fakePage{
		"http://example.com/": {links: []string{"http://example.com/next"}},
	})
	session.linkErr = errors.New("extraction blew up")

	c := New(session)
	pages, err := c.Crawl(context.Background(), "http://example.com/", testPolicy())
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("got %d pages, want 1", len(pages))
	}
	if len(c.Failed()) != 0 {
		t.Errorf("link failure recorded as page failure: %v", c.Failed())
	}
}

// TestCrawlDedup tests that URL variants are visited once.
func TestCrawlDedup(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]*fakePage{
		"http://example.com/": {links: []string{
			"http://example.com/page",
			"http://EXAMPLE.com/page",
			"http://example.com/page#section",
		}},
		"http://example.com/page": {},
	})

	c := New(session)
	pages, err := c.Crawl(context.Background(), "http://example.com/", testPolicy())
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("got %d pages, want 2", len(pages))
	}
	if got := session.attempts["http://example.com/page"]; got != 1 {
		t.Errorf("attempts for deduplicated page = %d, want 1", got)
	}
}

// TestNormalizeURL tests URL normalization rules.
func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"http://Example.COM", "http://example.com/"},
		{"http://example.com/page#frag", "http://example.com/page"},
		{"HTTP://example.com/a", "http://example.com/a"},
	}
	for _, tt := range tests {
		if got := normalizeURL(tt.in); got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestMatchPattern tests glob pattern matching.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/*", "/admin/dashboard", true},
		{"/admin/*", "/admin", true},
		{"/admin/*", "/public", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"*.pdf", "/docs/file.html", false},
		{"/api/v?", "/api/v1", true},
		{"/api/v?", "/api/v10", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
