package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are tuned for auditing typical small-to-medium websites
// without overloading the target or the local machine.
const (
	// DefaultTimeout is the per-request timeout for page navigation.
	// 30 seconds covers slow pages rendered through a headless browser
	// without stalling the whole crawl on a dead endpoint.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth limits BFS distance from the seed. Depth 3 reaches
	// most content on conventionally structured sites while keeping
	// crawl time bounded.
	DefaultMaxDepth = 3

	// DefaultMaxPages caps the number of pages per audit. This prevents
	// runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 100

	// DefaultWorkers is the analysis worker pool size. Page analysis is
	// I/O bound (navigation plus analyzer evaluation), so a handful of
	// workers saturates a single headless browser host.
	DefaultWorkers = 5

	// MinWorkers and MaxWorkers bound dynamic pool resizing.
	MinWorkers = 1
	MaxWorkers = 20

	// DefaultMaxRetries is how many times a failed fetch or analysis is
	// retried before the page is recorded as failed.
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the base wait between retry attempts.
	// Attempt N waits DefaultRetryDelay * (N+1).
	DefaultRetryDelay = 2 * time.Second

	// DefaultRequestDelay is the politeness delay between page fetches.
	DefaultRequestDelay = 500 * time.Millisecond

	// DefaultCacheSize is the maximum number of analysis results held in
	// the in-memory cache.
	DefaultCacheSize = 512

	// DefaultCacheTTL is how long a cached analysis result stays valid.
	DefaultCacheTTL = 30 * time.Minute

	// DefaultTaskTimeout bounds a single analysis task. A task exceeding
	// it is marked failed and its worker reclaimed.
	DefaultTaskTimeout = 2 * time.Minute

	// DefaultTopViolations is how many entries appear in the
	// most-common-violations ranking.
	DefaultTopViolations = 10

	// DefaultUserAgent identifies a11yscan in HTTP requests so site
	// operators can recognize audit traffic in their logs.
	DefaultUserAgent = "a11yscan/1.0 (+https://github.com/a11yscan/a11yscan)"

	// AppName is the application name used for XDG directory paths.
	AppName = "a11yscan"
)

// Config holds all configuration options for a11yscan.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, PoolConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant
// benefit.
type Config struct {
	// SeedURL is the page the crawl starts from.
	SeedURL string

	// Timeout is the per-request timeout for navigation and analysis.
	Timeout time.Duration

	// MaxDepth is the maximum BFS depth from the seed.
	MaxDepth int

	// MaxPages is the maximum number of pages to crawl.
	MaxPages int

	// AllowedDomains restricts crawling to the listed hosts. When empty,
	// only the seed's host is crawled.
	AllowedDomains []string

	// ExcludePatterns are URL path glob patterns to skip.
	ExcludePatterns []string

	// IncludePatterns, when non-empty, restrict crawling to matching paths.
	IncludePatterns []string

	// RequestDelay is the politeness delay between page fetches.
	RequestDelay time.Duration

	// MaxRetries is the retry budget per page fetch and per analysis task.
	MaxRetries int

	// RetryDelay is the base wait between retries.
	RetryDelay time.Duration

	// RespectRobots enables robots.txt checks before fetching.
	RespectRobots bool

	// Workers is the initial analysis worker pool size.
	Workers int

	// TaskTimeout bounds a single analysis task.
	TaskTimeout time.Duration

	// CacheSize is the analysis cache capacity in entries.
	CacheSize int

	// CacheTTL is the analysis cache entry lifetime.
	CacheTTL time.Duration

	// TopViolations is the size of the most-common-violations ranking.
	TopViolations int

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// JSONReport selects JSON report output. Mutually exclusive with
	// MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output. Mutually exclusive
	// with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to this path instead of stdout.
	ReportFile string

	// UseBrowser runs pages through a headless Chrome session instead of
	// the plain HTTP fetcher. Required for analyzers that evaluate
	// JavaScript on the page.
	UseBrowser bool

	// AxeScriptPath is a local path to the axe rule engine script
	// injected into browser sessions. Empty disables the axe analyzer.
	AxeScriptPath string

	// HTMLCSScriptPath is a local path to the HTML_CodeSniffer rule
	// engine script. Empty disables the htmlcs analyzer.
	HTMLCSScriptPath string

	// ConfigFilePath is the path to the .a11yscan configuration file.
	// If empty, the tool searches the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory for the SQLite scan-history database.
	// When set, finished report summaries are saved for later listing.
	DBDir string

	// SaveToDB indicates whether to persist scan summaries.
	// Automatically true when DBDir is configured.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults; callers override
// specific values after creation.
func NewConfig() *Config {
	return &Config{
		Timeout:       DefaultTimeout,
		MaxDepth:      DefaultMaxDepth,
		MaxPages:      DefaultMaxPages,
		RequestDelay:  DefaultRequestDelay,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		RespectRobots: true,
		Workers:       DefaultWorkers,
		TaskTimeout:   DefaultTaskTimeout,
		CacheSize:     DefaultCacheSize,
		CacheTTL:      DefaultCacheTTL,
		TopViolations: DefaultTopViolations,
		UserAgent:     DefaultUserAgent,
	}
}

// XDGDataDir returns the XDG data directory for a11yscan.
// On Linux: ~/.local/share/a11yscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for a11yscan.
// On Linux: ~/.config/a11yscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found; fixing one error often makes
// later ones irrelevant. Called once after CLI parsing, before any
// crawling begins.
func (c *Config) Validate() error {
	if c.SeedURL == "" {
		return ErrNoSeed
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.Workers < MinWorkers || c.Workers > MaxWorkers {
		return ErrInvalidWorkers
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.RequestDelay < 0 {
		return ErrInvalidRequestDelay
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.CacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	return nil
}
