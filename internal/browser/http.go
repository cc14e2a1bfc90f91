package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxBodySize limits how much of a response body the HTTP
// session reads. 5MB is sufficient for HTML pages while preventing
// memory exhaustion from unexpectedly large responses.
const DefaultMaxBodySize = 5 * 1024 * 1024

// HTTPSession fetches pages with a plain HTTP client. It supports
// navigation and link extraction but not JavaScript evaluation, so it
// only serves analyzers that work on static markup.
type HTTPSession struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	cookie      string
	maxBodySize int64

	// Current page state, owned by the single goroutine using the session.
	currentURL  *url.URL
	currentBody []byte
	contentType string
}

// HTTPSessionOption configures an HTTPSession.
type HTTPSessionOption func(*HTTPSession)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPSessionOption {
	return func(s *HTTPSession) {
		s.userAgent = ua
	}
}

// WithHeaders sets extra request headers, e.g. per-site authentication
// headers from the configuration file.
func WithHeaders(headers map[string]string) HTTPSessionOption {
	return func(s *HTTPSession) {
		s.headers = headers
	}
}

// WithCookie sets a Cookie header sent with every request.
func WithCookie(cookie string) HTTPSessionOption {
	return func(s *HTTPSession) {
		s.cookie = cookie
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) HTTPSessionOption {
	return func(s *HTTPSession) {
		s.maxBodySize = size
	}
}

// NewHTTPSession creates an HTTPSession using the given client.
//
// Design decision: We require an external client because transport
// configuration (timeouts, proxies) belongs to the caller, and tests
// can substitute an instrumented client.
func NewHTTPSession(client *http.Client, opts ...HTTPSessionOption) *HTTPSession {
	s := &HTTPSession{
		client:      client,
		userAgent:   "a11yscan/1.0",
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Navigate fetches pageURL and records it as the current page.
func (s *HTTPSession) Navigate(ctx context.Context, pageURL string) (*Navigation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	loadTime := time.Since(start)

	// resp.Request.URL reflects the final URL after redirects.
	s.currentURL = resp.Request.URL
	s.currentBody = body
	s.contentType = resp.Header.Get("Content-Type")

	nav := &Navigation{
		StatusCode: resp.StatusCode,
		LoadTime:   loadTime,
	}

	if strings.Contains(s.contentType, "text/html") {
		if parsed, err := parseHTML(bytes.NewReader(body), s.currentURL); err == nil {
			nav.Title = parsed.title
		}
	}

	return nav, nil
}

// Links extracts anchor URLs from the current page.
func (s *HTTPSession) Links(_ context.Context) ([]string, error) {
	if s.currentURL == nil {
		return nil, ErrNoPage
	}
	if !strings.Contains(s.contentType, "text/html") {
		return nil, nil
	}

	parsed, err := parseHTML(bytes.NewReader(s.currentBody), s.currentURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.currentURL, err)
	}
	return parsed.links, nil
}

// Evaluate is not supported without a JavaScript runtime.
func (s *HTTPSession) Evaluate(_ context.Context, _ string) (json.RawMessage, error) {
	return nil, ErrNotSupported
}

// Screenshot is not supported without a rendering engine.
func (s *HTTPSession) Screenshot(_ context.Context, _ string) ([]byte, error) {
	return nil, ErrNotSupported
}

// Close releases idle transport connections.
func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
