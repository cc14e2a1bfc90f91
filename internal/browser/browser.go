package browser

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotSupported is returned by sessions that cannot perform the
// requested operation (e.g., JavaScript evaluation on a plain HTTP
// session). Callers degrade gracefully: analyzers that need script
// evaluation report an analyzer failure for the page, and the run
// continues with the surviving analyzers.
var ErrNotSupported = errors.New("operation not supported by this session")

// ErrNoPage is returned when Links, Evaluate, or Screenshot is called
// before a successful Navigate.
var ErrNoPage = errors.New("no page loaded in session")

// Navigation is the result of loading a page.
type Navigation struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Title is the page title, empty for non-HTML content.
	Title string

	// LoadTime is how long navigation took.
	LoadTime time.Duration
}

// Session is one navigable browsing context. Navigate loads a page;
// the remaining methods operate on the currently loaded page.
// Sessions are not safe for concurrent use; each worker owns its own.
type Session interface {
	// Navigate loads the page at pageURL and returns navigation metadata.
	// The context bounds the whole navigation including redirects.
	Navigate(ctx context.Context, pageURL string) (*Navigation, error)

	// Links returns the absolute http(s) URLs of all anchors on the
	// current page.
	Links(ctx context.Context) ([]string, error)

	// Evaluate runs a JavaScript expression on the current page and
	// returns its JSON-serialized result.
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)

	// Screenshot captures the element matching selector, or the whole
	// viewport when selector is empty.
	Screenshot(ctx context.Context, selector string) ([]byte, error)

	// Close releases the session's resources.
	Close() error
}

// Factory creates a fresh Session. The pipeline uses a factory so each
// worker gets its own browsing context and no page state is shared
// across workers.
type Factory func() (Session, error)
