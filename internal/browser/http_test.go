package browser

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
)

// newMockSession returns an HTTPSession backed by an httpmock transport
// plus the transport for registering responders.
func newMockSession(t *testing.T, opts ...HTTPSessionOption) *HTTPSession {
	t.Helper()

	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewHTTPSession(client, opts...)
}

// htmlResponder builds an HTML responder with the given body.
func htmlResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponder(status, body)
	return resp.HeaderSet(http.Header{"Content-Type": []string{"text/html; charset=utf-8"}})
}

// TestHTTPSessionNavigate tests navigation metadata extraction.
func TestHTTPSessionNavigate(t *testing.T) {
	s := newMockSession(t)
	httpmock.RegisterResponder(http.MethodGet, "http://example.com/",
		htmlResponder(200, `<html><head><title>Home Page</title></head><body></body></html>`))

	nav, err := s.Navigate(context.Background(), "http://example.com/")
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	if nav.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", nav.StatusCode)
	}
	if nav.Title != "Home Page" {
		t.Errorf("Title = %q, want %q", nav.Title, "Home Page")
	}
}

// TestHTTPSessionLinks tests link extraction and resolution.
func TestHTTPSessionLinks(t *testing.T) {
	s := newMockSession(t)
	body := `<html><body>
		<a href="/about">About</a>
		<a href="contact.html">Contact</a>
		<a href="http://other.example/page">External</a>
		<a href="mailto:hi@example.com">Mail</a>
		<a href="#section">Anchor</a>
		<a href="/about">Duplicate</a>
	</body></html>`
	httpmock.RegisterResponder(http.MethodGet, "http://example.com/docs/",
		htmlResponder(200, body))

	if _, err := s.Navigate(context.Background(), "http://example.com/docs/"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	links, err := s.Links(context.Background())
	if err != nil {
		t.Fatalf("Links() error = %v", err)
	}

	want := []string{
		"http://example.com/about",
		"http://example.com/docs/contact.html",
		"http://other.example/page",
	}
	sort.Strings(links)
	sort.Strings(want)
	if len(links) != len(want) {
		t.Fatalf("Links() = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

// TestHTTPSessionLinksWithoutNavigate tests the no-page error.
func TestHTTPSessionLinksWithoutNavigate(t *testing.T) {
	s := newMockSession(t)

	if _, err := s.Links(context.Background()); !errors.Is(err, ErrNoPage) {
		t.Errorf("Links() error = %v, want ErrNoPage", err)
	}
}

// TestHTTPSessionNonHTML tests that non-HTML pages yield no links.
func TestHTTPSessionNonHTML(t *testing.T) {
	s := newMockSession(t)
	resp := httpmock.NewStringResponder(200, `{"ok":true}`)
	httpmock.RegisterResponder(http.MethodGet, "http://example.com/api",
		resp.HeaderSet(http.Header{"Content-Type": []string{"application/json"}}))

	if _, err := s.Navigate(context.Background(), "http://example.com/api"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	links, err := s.Links(context.Background())
	if err != nil {
		t.Fatalf("Links() error = %v", err)
	}
	if len(links) != 0 {
		t.Errorf("Links() = %v, want empty", links)
	}
}

// TestHTTPSessionHeaders tests custom headers and cookies.
func TestHTTPSessionHeaders(t *testing.T) {
	s := newMockSession(t,
		WithUserAgent("test-agent"),
		WithHeaders(map[string]string{"X-Custom": "yes"}),
		WithCookie("session=abc"),
	)

	var got http.Header
	httpmock.RegisterResponder(http.MethodGet, "http://example.com/",
		func(req *http.Request) (*http.Response, error) {
			got = req.Header.Clone()
			resp := httpmock.NewStringResponse(200, "<html></html>")
			resp.Request = req
			return resp, nil
		})

	if _, err := s.Navigate(context.Background(), "http://example.com/"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	if got.Get("User-Agent") != "test-agent" {
		t.Errorf("User-Agent = %q, want %q", got.Get("User-Agent"), "test-agent")
	}
	if got.Get("X-Custom") != "yes" {
		t.Errorf("X-Custom = %q, want %q", got.Get("X-Custom"), "yes")
	}
	if got.Get("Cookie") != "session=abc" {
		t.Errorf("Cookie = %q, want %q", got.Get("Cookie"), "session=abc")
	}
}

// TestHTTPSessionBodyLimit tests the response size cap.
func TestHTTPSessionBodyLimit(t *testing.T) {
	s := newMockSession(t, WithMaxBodySize(64))
	httpmock.RegisterResponder(http.MethodGet, "http://example.com/big",
		htmlResponder(200, strings.Repeat("x", 4096)))

	if _, err := s.Navigate(context.Background(), "http://example.com/big"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if len(s.currentBody) != 64 {
		t.Errorf("body length = %d, want 64", len(s.currentBody))
	}
}

// TestHTTPSessionEvaluateNotSupported tests graceful degradation.
func TestHTTPSessionEvaluateNotSupported(t *testing.T) {
	s := newMockSession(t)

	if _, err := s.Evaluate(context.Background(), "1+1"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Evaluate() error = %v, want ErrNotSupported", err)
	}
	if _, err := s.Screenshot(context.Background(), "img"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Screenshot() error = %v, want ErrNotSupported", err)
	}
}
