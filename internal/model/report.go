package model

import "time"

// PageReport holds the merged analysis result for one page.
type PageReport struct {
	// URL is the analyzed page.
	URL string `json:"url"`

	// Depth is the BFS depth at which the page was discovered.
	Depth int `json:"depth"`

	// Violations is the deduplicated, severity-ranked violation set.
	Violations []Violation `json:"violations"`

	// Analyzers lists the tools whose output contributed to the result.
	// When one analyzer fails the run degrades to the survivors, so this
	// may be a subset of the registered analyzers.
	Analyzers []string `json:"analyzers"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration_ms"`

	// FromCache is true when the result was served from the analysis cache.
	FromCache bool `json:"from_cache"`
}

// ViolationCount counts violations on the page, weighted by occurrences.
func (p *PageReport) ViolationCount() int {
	total := 0
	for _, v := range p.Violations {
		total += v.Occurrences
	}
	return total
}

// Compliant reports whether the page has zero violations.
func (p *PageReport) Compliant() bool {
	return len(p.Violations) == 0
}

// ViolationFrequency ranks a violation by how often it appears site-wide.
type ViolationFrequency struct {
	// ID is the rule identifier.
	ID string `json:"id"`

	// Description explains the rule.
	Description string `json:"description"`

	// Impact is the highest impact observed for the rule.
	Impact Impact `json:"impact"`

	// ImpactText is the string form of Impact.
	ImpactText string `json:"impact_text"`

	// Occurrences is the total occurrence count across all pages.
	Occurrences int `json:"occurrences"`

	// AffectedPages is the number of pages reporting the violation.
	// Used to break ranking ties.
	AffectedPages int `json:"affected_pages"`
}

// Summary aggregates site-wide counts for the final report.
type Summary struct {
	// PagesCrawled is the number of pages successfully fetched.
	PagesCrawled int `json:"pages_crawled"`

	// PagesAnalyzed is the number of pages with a completed analysis.
	PagesAnalyzed int `json:"pages_analyzed"`

	// PagesFailed counts pages that failed to fetch or analyze.
	PagesFailed int `json:"pages_failed"`

	// TotalViolations is the occurrence-weighted violation count.
	TotalViolations int `json:"total_violations"`

	// ViolationsBySeverity maps impact names to occurrence counts.
	ViolationsBySeverity map[string]int `json:"violations_by_severity"`

	// CompliancePercent is the share of analyzed pages with zero
	// violations, in the range [0, 100].
	CompliancePercent float64 `json:"compliance_percent"`

	// Duration is the wall-clock time of the whole run.
	Duration time.Duration `json:"duration_ms"`
}

// SiteReport is the finished site-wide report emitted to the report sink.
type SiteReport struct {
	// SiteURL is the crawl seed.
	SiteURL string `json:"site_url"`

	// Timestamp is when the run finished.
	Timestamp time.Time `json:"timestamp"`

	// Summary holds the aggregate counts.
	Summary Summary `json:"summary"`

	// PageReports holds per-page results in (depth, url) order.
	PageReports []PageReport `json:"page_reports"`

	// ViolationsByType maps rule IDs to occurrence counts.
	ViolationsByType map[string]int `json:"violations_by_type"`

	// MostCommonViolations is the top-N ranking by occurrence count,
	// ties broken by affected-page count.
	MostCommonViolations []ViolationFrequency `json:"most_common_violations"`

	// FailedPages lists pages that contributed no analysis, with reasons.
	FailedPages []FailedPage `json:"failed_pages"`
}
