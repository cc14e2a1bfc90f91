package browser

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// parseResult holds what the HTTP session extracts from an HTML page.
type parseResult struct {
	title string
	links []string
}

// parseHTML extracts the title and absolute anchor URLs from an HTML
// document. Relative hrefs are resolved against base; only http(s)
// links are kept and fragments are dropped.
//
// Design decision: We use golang.org/x/net/html rather than regex
// because it correctly handles the malformed HTML common on the web and
// is maintained as a standard library extension.
func parseHTML(r io.Reader, base *url.URL) (*parseResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	result := &parseResult{}
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				for _, attr := range n.Attr {
					if attr.Key != "href" {
						continue
					}
					if link, ok := resolveLink(base, attr.Val); ok && !seen[link] {
						seen[link] = true
						result.links = append(result.links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// resolveLink resolves href against base and reports whether the result
// is a crawlable http(s) URL.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	// Fragments never change page content.
	resolved.Fragment = ""

	return resolved.String(), true
}
