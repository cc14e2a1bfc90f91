package model

import "time"

// PageRef is a reference to a page discovered during a crawl.
// It is created by the crawler when a link is extracted and is immutable
// once recorded. Depth increases monotonically from the seed (depth 0).
type PageRef struct {
	// URL is the normalized absolute URL of the page.
	URL string `json:"url"`

	// Depth is the BFS distance from the seed page.
	Depth int `json:"depth"`

	// DiscoveredFrom is the URL of the page that linked here.
	// Empty for the seed.
	DiscoveredFrom string `json:"discovered_from,omitempty"`

	// StatusCode is the HTTP response status code, or 0 if the page
	// was never fetched successfully.
	StatusCode int `json:"status_code"`

	// Title is the page title reported by the browser session.
	Title string `json:"title,omitempty"`

	// LoadTime is how long the page took to load.
	LoadTime time.Duration `json:"load_time_ms"`

	// FetchedAt is when the page was fetched.
	FetchedAt time.Time `json:"fetched_at"`
}

// FailedPage records a page that could not be fetched or analyzed.
// Failed pages are retained so partial results are never silently dropped.
type FailedPage struct {
	// URL is the page that failed.
	URL string `json:"url"`

	// Depth is the BFS depth at which the failure occurred.
	Depth int `json:"depth"`

	// Reason is a human-readable description of the failure.
	Reason string `json:"reason"`
}
