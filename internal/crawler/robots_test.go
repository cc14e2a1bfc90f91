package crawler

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

// TestRobotsCache tests robots.txt fetching and rule application.
func TestRobotsCache(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, "http://example.com/robots.txt",
		httpmock.NewStringResponder(200, "User-agent: *\nDisallow: /private/\n"))

	rc := newRobotsCache(client, "a11yscan")

	if !rc.allowed(context.Background(), "http://example.com/public/page") {
		t.Error("expected /public/page to be allowed")
	}
	if rc.allowed(context.Background(), "http://example.com/private/secret") {
		t.Error("expected /private/secret to be disallowed")
	}

	// The robots file is fetched once per host.
	info := httpmock.GetCallCountInfo()
	if got := info["GET http://example.com/robots.txt"]; got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
}

// TestRobotsCacheMissingFile tests that an unreachable robots.txt is
// treated as allow-all.
func TestRobotsCacheMissingFile(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, "http://example.com/robots.txt",
		httpmock.NewStringResponder(404, "not found"))

	rc := newRobotsCache(client, "a11yscan")

	if !rc.allowed(context.Background(), "http://example.com/anything") {
		t.Error("expected missing robots.txt to allow everything")
	}
}
