package browser

import (
	"context"
	"encoding/json"
	"fmt"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// extractLinksJS collects the absolute http(s) URLs of all anchors on
// the page. Fragments are stripped in Go, not here, to keep the script
// minimal.
const extractLinksJS = `Array.from(document.querySelectorAll('a[href]'))
	.map(a => a.href)
	.filter(h => h.startsWith('http://') || h.startsWith('https://'))`

// ChromeSession drives one headless Chrome tab via chromedp. Unlike
// HTTPSession it executes JavaScript, which the rule-engine analyzers
// require.
type ChromeSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
	loaded  bool
}

// ChromeOptions configures a ChromeSession.
type ChromeOptions struct {
	// UserAgent overrides Chrome's default User-Agent when non-empty.
	UserAgent string

	// ExecPath points at a specific Chrome binary. Empty uses the
	// first binary chromedp finds.
	ExecPath string
}

// NewChromeSession starts a headless Chrome tab.
// The returned session must be closed to release the browser process.
func NewChromeSession(parent context.Context, opts ChromeOptions) (*ChromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a missing binary fails here rather
	// than on the first Navigate.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromeSession{
		ctx:     tabCtx,
		cancels: []context.CancelFunc{tabCancel, allocCancel},
	}, nil
}

// Navigate loads pageURL in the tab and waits for the document response.
func (s *ChromeSession) Navigate(ctx context.Context, pageURL string) (*Navigation, error) {
	runCtx, cancel := mergeContexts(s.ctx, ctx)
	defer cancel()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(pageURL))
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return nil, fmt.Errorf("read title: %w", err)
	}

	nav := &Navigation{Title: title}
	if resp != nil {
		nav.StatusCode = int(resp.Status)
	}
	s.loaded = true
	return nav, nil
}

// Links evaluates a collector expression against the live DOM, so it
// sees anchors added by client-side rendering.
func (s *ChromeSession) Links(ctx context.Context) ([]string, error) {
	if !s.loaded {
		return nil, ErrNoPage
	}

	runCtx, cancel := mergeContexts(s.ctx, ctx)
	defer cancel()

	var links []string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(extractLinksJS, &links)); err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}
	return links, nil
}

// Evaluate runs script on the current page and returns the JSON result.
func (s *ChromeSession) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	if !s.loaded {
		return nil, ErrNoPage
	}

	runCtx, cancel := mergeContexts(s.ctx, ctx)
	defer cancel()

	var raw json.RawMessage
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &raw,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true)
		})); err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}
	return raw, nil
}

// Screenshot captures the element matching selector, or the viewport
// when selector is empty.
func (s *ChromeSession) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	if !s.loaded {
		return nil, ErrNoPage
	}

	runCtx, cancel := mergeContexts(s.ctx, ctx)
	defer cancel()

	var buf []byte
	var action chromedp.Action
	if selector == "" {
		action = chromedp.CaptureScreenshot(&buf)
	} else {
		action = chromedp.Screenshot(selector, &buf, chromedp.NodeVisible)
	}
	if err := chromedp.Run(runCtx, action); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close tears down the tab and the browser process.
func (s *ChromeSession) Close() error {
	for _, cancel := range s.cancels {
		cancel()
	}
	return nil
}

// mergeContexts derives a context from the chromedp tab context that is
// also cancelled when the caller's context is. chromedp actions must run
// on the tab context, but per-call deadlines come from the caller.
func mergeContexts(tab, caller context.Context) (context.Context, context.CancelFunc) {
	var merged context.Context
	var cancel context.CancelFunc
	if deadline, ok := caller.Deadline(); ok {
		merged, cancel = context.WithDeadline(tab, deadline)
	} else {
		merged, cancel = context.WithCancel(tab)
	}

	stop := context.AfterFunc(caller, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
