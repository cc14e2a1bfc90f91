package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Policy is the read-only crawl policy supplied once per crawl.
type Policy struct {
	// MaxPages caps the number of successfully fetched pages.
	MaxPages int

	// MaxDepth is the maximum BFS distance from the seed. Depth 0 means
	// only the seed page.
	MaxDepth int

	// AllowedDomains restricts crawling to the listed hosts.
	// When empty, only the seed's host is crawled.
	AllowedDomains []string

	// ExcludePatterns are URL path glob patterns that are never crawled.
	ExcludePatterns []string

	// IncludePatterns, when non-empty, restrict crawling to paths
	// matching at least one pattern.
	IncludePatterns []string

	// RequestDelay is the politeness delay between fetches.
	RequestDelay time.Duration

	// MaxRetries is the number of retries after a failed fetch; a page
	// is attempted at most MaxRetries+1 times.
	MaxRetries int

	// RetryDelay is the base retry wait; attempt N waits
	// RetryDelay * (N+1).
	RetryDelay time.Duration

	// RespectRobots enables robots.txt checks before fetching.
	RespectRobots bool
}

// allowsDomain reports whether the policy allows crawling host.
// seedHost is the implicit allow-list entry when AllowedDomains is empty.
func (p *Policy) allowsDomain(seedHost, host string) bool {
	if len(p.AllowedDomains) == 0 {
		return strings.EqualFold(host, seedHost)
	}
	for _, d := range p.AllowedDomains {
		if strings.EqualFold(host, d) {
			return true
		}
	}
	return false
}

// allowsPath applies the exclude and include pattern rules:
//  1. A path matching any exclude pattern is skipped.
//  2. When include patterns are set, the path must match at least one.
func (p *Policy) allowsPath(path string) bool {
	if path == "" {
		path = "/"
	}

	for _, pattern := range p.ExcludePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(p.IncludePatterns) > 0 {
		for _, pattern := range p.IncludePatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	// Prefix patterns like "/admin/*" should match whole subtrees.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	// Extension patterns like "*.pdf" match anywhere in the tree.
	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Also try matching just the filename for patterns like "*.pdf".
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}

// normalizeURL normalizes a URL for deduplication.
//
// Design decision: We normalize because the same page can have several
// URL representations: fragments don't change content, scheme and host
// are case-insensitive, and an empty path equals "/".
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
