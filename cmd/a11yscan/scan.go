package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/a11yscan/a11yscan/internal/analyzer"
	"github.com/a11yscan/a11yscan/internal/browser"
	"github.com/a11yscan/a11yscan/internal/cache"
	"github.com/a11yscan/a11yscan/internal/config"
	"github.com/a11yscan/a11yscan/internal/crawler"
	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/log"
	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/pipeline"
	"github.com/a11yscan/a11yscan/internal/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Audit a website for accessibility violations",
		Long: `Scan crawls a website breadth-first from the given seed URL and runs
each discovered page through the configured WCAG rule engines.

Findings from all engines are merged and deduplicated, ranked by impact,
and summarized into per-site compliance statistics.

At least one rule engine script is required (--axe-script and/or
--htmlcs-script). Pages are analyzed in headless Chrome sessions so the
engines can evaluate the rendered DOM; --use-browser additionally routes
the crawl itself through Chrome for sites that render links with
JavaScript.

Examples:
  # Audit a site with the axe-core engine
  a11yscan scan https://example.com --axe-script axe.min.js

  # Run both engines and include advisory warnings
  a11yscan scan https://example.com --axe-script axe.min.js \
    --htmlcs-script HTMLCS.min.js --include-warnings

  # Limit the crawl and write a Markdown report
  a11yscan scan https://example.com --axe-script axe.min.js \
    --depth 2 --max-pages 50 --markdown -o report.md

  # Use a custom configuration file
  a11yscan scan -c myconfig.yaml https://example.com --axe-script axe.min.js

Configuration file (.a11yscan) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
    intranet.example.com:
      depth: 5
      excludePatterns:
        - "/admin/*"`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Navigation timeout for each page")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl recursion depth from the seed")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl")
	cmd.Flags().StringSlice("allowed-domains", nil,
		"Additional hostnames the crawl may visit (default: seed host only)")
	cmd.Flags().StringSlice("exclude", nil,
		"URL path glob patterns to skip")
	cmd.Flags().StringSlice("include", nil,
		"URL path glob patterns to restrict the crawl to")
	cmd.Flags().Duration("request-delay", config.DefaultRequestDelay,
		"Politeness delay between page fetches")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt directives")
	cmd.Flags().IntP("max-retries", "r", config.DefaultMaxRetries,
		"Retries per failed fetch or analysis task")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with requests")

	// Analysis flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Analysis worker pool size")
	cmd.Flags().Duration("task-timeout", config.DefaultTaskTimeout,
		"Time limit for a single page analysis")
	cmd.Flags().String("standard", "wcag2aa",
		"Conformance target passed to the rule engines (wcag2a, wcag2aa, wcag2aaa)")
	cmd.Flags().Bool("include-warnings", false,
		"Include advisory findings in the results")
	cmd.Flags().Bool("screenshots", false,
		"Capture evidence screenshots for violations")
	cmd.Flags().String("axe-script", "",
		"Path to the axe-core rule engine script")
	cmd.Flags().String("htmlcs-script", "",
		"Path to the HTML_CodeSniffer rule engine script")
	cmd.Flags().Bool("use-browser", false,
		"Crawl through headless Chrome instead of the plain HTTP fetcher")

	// Cache flags
	cmd.Flags().Int("cache-size", config.DefaultCacheSize,
		"Analysis cache capacity in entries")
	cmd.Flags().Duration("cache-ttl", config.DefaultCacheTTL,
		"Analysis cache entry lifetime")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .a11yscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Int("top", config.DefaultTopViolations,
		"Number of entries in the most-common-violations ranking")
	cmd.Flags().Bool("no-save", false,
		"Do not record the audit in the local history database")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.AxeScriptPath == "" && cfg.HTMLCSScriptPath == "" {
		return fmt.Errorf("%w: provide --axe-script and/or --htmlcs-script", analyzer.ErrNoAnalyzers)
	}

	analysisOpts, err := buildAnalysisOptions(cmd)
	if err != nil {
		return err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	logger := log.NewLogger(os.Stderr, cfg.Verbose)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cfg, analysisOpts, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.SeedURL = args[0]

	var err error

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.AllowedDomains, err = cmd.Flags().GetStringSlice("allowed-domains")
	if err != nil {
		return nil, err
	}

	cfg.ExcludePatterns, err = cmd.Flags().GetStringSlice("exclude")
	if err != nil {
		return nil, err
	}

	cfg.IncludePatterns, err = cmd.Flags().GetStringSlice("include")
	if err != nil {
		return nil, err
	}

	cfg.RequestDelay, err = cmd.Flags().GetDuration("request-delay")
	if err != nil {
		return nil, err
	}

	noRobots, err := cmd.Flags().GetBool("no-robots")
	if err != nil {
		return nil, err
	}
	cfg.RespectRobots = !noRobots

	cfg.MaxRetries, err = cmd.Flags().GetInt("max-retries")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}

	cfg.TaskTimeout, err = cmd.Flags().GetDuration("task-timeout")
	if err != nil {
		return nil, err
	}

	cfg.CacheSize, err = cmd.Flags().GetInt("cache-size")
	if err != nil {
		return nil, err
	}

	cfg.CacheTTL, err = cmd.Flags().GetDuration("cache-ttl")
	if err != nil {
		return nil, err
	}

	cfg.AxeScriptPath, err = cmd.Flags().GetString("axe-script")
	if err != nil {
		return nil, err
	}

	cfg.HTMLCSScriptPath, err = cmd.Flags().GetString("htmlcs-script")
	if err != nil {
		return nil, err
	}

	cfg.UseBrowser, err = cmd.Flags().GetBool("use-browser")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.TopViolations, err = cmd.Flags().GetInt("top")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir = config.XDGDataDir()

	return cfg, nil
}

// buildAnalysisOptions creates AnalysisOptions from cobra command flags.
func buildAnalysisOptions(cmd *cobra.Command) (model.AnalysisOptions, error) {
	opts := model.DefaultAnalysisOptions()

	var err error

	opts.Standard, err = cmd.Flags().GetString("standard")
	if err != nil {
		return opts, err
	}

	opts.IncludeWarnings, err = cmd.Flags().GetBool("include-warnings")
	if err != nil {
		return opts, err
	}

	opts.CaptureScreenshots, err = cmd.Flags().GetBool("screenshots")
	if err != nil {
		return opts, err
	}

	return opts, nil
}

// runScan executes the audit.
func runScan(ctx context.Context, cfg *config.Config, analysisOpts model.AnalysisOptions, logger *slog.Logger) error {
	logger.Info("starting audit",
		"seed", cfg.SeedURL,
		"maxDepth", cfg.MaxDepth,
		"maxPages", cfg.MaxPages,
		"workers", cfg.Workers,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	seed, err := url.Parse(cfg.SeedURL)
	if err != nil {
		return fmt.Errorf("invalid seed URL %q: %w", cfg.SeedURL, err)
	}
	siteConfig := cfg.SiteConfigs.GetSiteConfig(seed.Hostname())

	// Build analyzers from the configured rule engine scripts
	analyzers, err := buildAnalyzers(cfg)
	if err != nil {
		return err
	}

	// The crawl session fetches pages and extracts links. HTTP suffices
	// for server-rendered sites; --use-browser routes the crawl through
	// Chrome for JavaScript-rendered navigation.
	crawlSession, err := newCrawlSession(ctx, cfg, siteConfig)
	if err != nil {
		return fmt.Errorf("failed to create crawl session: %w", err)
	}
	defer crawlSession.Close()

	c := crawler.New(crawlSession,
		crawler.WithLogger(logger),
		crawler.WithRobotsClient(&http.Client{Timeout: cfg.Timeout}, cfg.UserAgent),
	)

	// Analysis sessions always run in Chrome: the rule engines evaluate
	// JavaScript against the rendered DOM.
	sessions := func() (browser.Session, error) {
		return browser.NewChromeSession(ctx, browser.ChromeOptions{UserAgent: cfg.UserAgent})
	}

	// Shared metrics registry for the pipeline and the cache
	registry := prometheus.NewRegistry()

	analysisCache, err := cache.NewAnalysisCache(cfg.CacheSize,
		cache.WithMetrics(cache.NewMetrics(registry)),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis cache: %w", err)
	}
	defer analysisCache.Stop()

	batches := pipeline.NewBatchProcessor(
		pipeline.WithBatchLogger(logger),
		pipeline.WithDomainDelay(cfg.RequestDelay),
		pipeline.WithHitRateProbe(func() float64 {
			return analysisCache.Stats().HitRate()
		}),
	)

	orch := pipeline.NewOrchestrator(c, sessions, analyzers,
		pipeline.WithOrchestratorLogger(logger),
		pipeline.WithCache(analysisCache, cfg.CacheTTL),
		pipeline.WithAnalysisOptions(analysisOpts),
		pipeline.WithTaskRetries(cfg.MaxRetries),
		pipeline.WithTopViolations(cfg.TopViolations),
		pipeline.WithBatchProcessor(batches),
		pipeline.WithProgress(printProgress()),
		pipeline.WithPoolOptions(
			pipeline.WithPoolLogger(logger),
			pipeline.WithWorkers(cfg.Workers),
			pipeline.WithTaskTimeout(cfg.TaskTimeout),
			pipeline.WithPoolMetrics(pipeline.NewMetrics(registry)),
		),
	)

	policy := buildPolicy(cfg, siteConfig)

	fmt.Printf("Auditing %s...\n", cfg.SeedURL)
	startTime := time.Now()

	siteReport, err := orch.Run(ctx, cfg.SeedURL, policy)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Printf("Audit completed in %s\n\n", elapsed.Round(time.Millisecond))

	if err := outputReport(cfg, siteReport); err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	if db != nil {
		if _, err := db.SaveReport(ctx, siteReport); err != nil {
			logger.Error("failed to save audit report", "error", err)
		} else {
			logger.Info("audit report saved", "site", siteReport.SiteURL)
		}
	}

	return nil
}

// buildAnalyzers loads the configured rule engine scripts.
func buildAnalyzers(cfg *config.Config) ([]analyzer.Analyzer, error) {
	var analyzers []analyzer.Analyzer

	if cfg.AxeScriptPath != "" {
		script, err := os.ReadFile(cfg.AxeScriptPath) //nolint:gosec // User-provided script path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to read axe script: %w", err)
		}
		analyzers = append(analyzers, analyzer.NewAxeAnalyzer(string(script)))
	}

	if cfg.HTMLCSScriptPath != "" {
		script, err := os.ReadFile(cfg.HTMLCSScriptPath) //nolint:gosec // User-provided script path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to read HTML_CodeSniffer script: %w", err)
		}
		analyzers = append(analyzers, analyzer.NewHTMLCSAnalyzer(string(script)))
	}

	return analyzers, nil
}

// newCrawlSession creates the session used for crawling.
func newCrawlSession(ctx context.Context, cfg *config.Config, siteConfig config.SiteConfig) (browser.Session, error) {
	if cfg.UseBrowser {
		return browser.NewChromeSession(ctx, browser.ChromeOptions{UserAgent: cfg.UserAgent})
	}

	opts := []browser.HTTPSessionOption{
		browser.WithUserAgent(cfg.UserAgent),
	}
	if siteConfig.Cookie != "" {
		opts = append(opts, browser.WithCookie(siteConfig.Cookie))
	}
	if len(siteConfig.Headers) > 0 {
		opts = append(opts, browser.WithHeaders(siteConfig.Headers))
	}

	return browser.NewHTTPSession(&http.Client{Timeout: cfg.Timeout}, opts...), nil
}

// buildPolicy derives the crawl policy from the configuration,
// applying site-specific overrides from the config file.
func buildPolicy(cfg *config.Config, siteConfig config.SiteConfig) crawler.Policy {
	policy := crawler.Policy{
		MaxPages:        cfg.MaxPages,
		MaxDepth:        cfg.MaxDepth,
		AllowedDomains:  cfg.AllowedDomains,
		ExcludePatterns: cfg.ExcludePatterns,
		IncludePatterns: cfg.IncludePatterns,
		RequestDelay:    cfg.RequestDelay,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		RespectRobots:   cfg.RespectRobots,
	}

	if siteConfig.Depth > 0 {
		policy.MaxDepth = siteConfig.Depth
	}
	if len(siteConfig.ExcludePatterns) > 0 {
		policy.ExcludePatterns = append(policy.ExcludePatterns, siteConfig.ExcludePatterns...)
	}
	if len(siteConfig.IncludePatterns) > 0 {
		policy.IncludePatterns = append(policy.IncludePatterns, siteConfig.IncludePatterns...)
	}

	return policy
}

// printProgress returns a progress callback that writes stage
// transitions to stderr, keeping stdout clean for the report.
func printProgress() pipeline.ProgressFunc {
	var lastStage string
	return func(p pipeline.Progress) {
		if p.Stage == lastStage {
			return
		}
		lastStage = p.Stage
		fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", p.Percent, p.Message)
	}
}

// outputReport outputs the audit report in the requested format.
func outputReport(cfg *config.Config, siteReport *model.SiteReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewTextWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(siteReport)
	return err
}
