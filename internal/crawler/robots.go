package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches robots.txt per host. A host whose
// robots.txt cannot be fetched is treated as allowing everything, the
// same stance most crawlers take on unreachable robots files.
type robotsCache struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	hosts map[string]*robotstxt.Group
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		hosts:     make(map[string]*robotstxt.Group),
	}
}

// allowed reports whether the robots policy of pageURL's host permits
// fetching it.
func (rc *robotsCache) allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}

	group := rc.group(ctx, u)
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (rc *robotsCache) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	key := u.Scheme + "://" + u.Host

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if group, ok := rc.hosts[key]; ok {
		return group
	}

	group := rc.fetch(ctx, key)
	rc.hosts[key] = group
	return group
}

// fetch retrieves and parses robots.txt for base. Returns nil when the
// file is missing or malformed, which callers treat as allow-all.
func (rc *robotsCache) fetch(ctx context.Context, base string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/robots.txt", base), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}

	return data.FindGroup(rc.userAgent)
}
