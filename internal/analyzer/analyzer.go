package analyzer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/a11yscan/a11yscan/internal/model"
)

// Evaluator runs JavaScript on the currently loaded page and returns
// the JSON-serialized result. browser.Session satisfies this interface;
// analyzers accept the narrow interface so tests can fake it.
type Evaluator interface {
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
}

// Target is the page handle passed to analyzers. The page must already
// be loaded in the evaluator's browsing context.
type Target struct {
	// URL is the page under analysis, used for reporting only.
	URL string

	// Options configure the analysis run.
	Options model.AnalysisOptions

	// Evaluator executes rule engine scripts on the page.
	Evaluator Evaluator
}

// Analyzer analyzes one loaded page for accessibility violations.
// Implementations are opaque rule engines behind a thin normalization
// adapter; a11yscan never interprets their rule logic.
type Analyzer interface {
	// Name identifies the tool in merged violations and reports.
	Name() string

	// Analyze runs the tool against the target page and returns
	// normalized violations. An error marks this tool's contribution as
	// failed; the page only fails when every analyzer errors.
	Analyze(ctx context.Context, target Target) ([]model.Violation, error)
}

// ErrNoAnalyzers is returned when a run is configured without any
// analyzer. This is a configuration error and fatal to the whole run,
// unlike individual analyzer failures.
var ErrNoAnalyzers = errors.New("no analyzers registered")
