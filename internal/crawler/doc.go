// Package crawler implements breadth-first site discovery.
//
// The Crawler walks a site from a seed URL using a FIFO frontier,
// applying the crawl policy (depth, page cap, domain allow-list, and
// include/exclude path patterns) before fetching each candidate.
// Fetches go through the browser collaborator with a retry wrapper;
// pages that exhaust their retries are recorded as failed and the crawl
// continues. Final results are sorted by (depth, url) so consumers see
// a deterministic breadth-first order.
package crawler
