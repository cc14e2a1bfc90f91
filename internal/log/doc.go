// Package log provides sanitized logging built on the standard slog
// package.
//
// Audit runs regularly handle two kinds of values that should not reach
// log output as-is: per-site credentials (cookies and authorization
// headers loaded from the .a11yscan config file) and large HTML element
// snippets attached to violations. The SanitizingHandler masks the
// former and truncates the latter before records reach the underlying
// handler.
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Info("page fetched",
//	    "cookie", "session=abc123", // masked
//	    "html", longSnippet,        // truncated
//	)
package log
