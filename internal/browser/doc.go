// Package browser abstracts the page-fetch collaborator used by the
// crawler and the analyzers.
//
// A Session models one navigable browsing context: Navigate loads a
// page, and subsequent Links, Evaluate, and Screenshot calls operate on
// the currently loaded page. Two implementations are provided:
//
//   - HTTPSession fetches pages with net/http and extracts links and
//     titles with golang.org/x/net/html. It cannot evaluate JavaScript,
//     so Evaluate and Screenshot return ErrNotSupported.
//   - ChromeSession drives a headless Chrome tab via chromedp and
//     supports the full surface, including script evaluation for the
//     rule-engine analyzers.
package browser
