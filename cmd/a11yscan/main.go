// Package main provides the entry point for the a11yscan CLI.
//
// a11yscan is an accessibility auditing tool for websites. It crawls a
// site, runs each discovered page through WCAG rule engines, and
// reports the merged violations.
//
// Usage:
//
//	a11yscan scan https://example.com --axe-script axe.min.js
//	a11yscan history https://example.com
//
// See --help for all available options.
package main

// main is the entry point for a11yscan.
func main() {
	Execute()
}
