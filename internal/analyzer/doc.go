// Package analyzer defines the accessibility analyzer boundary and the
// violation merge engine.
//
// The rule logic itself is external: each analyzer wraps an opaque rule
// engine script (axe-core, HTML_CodeSniffer) evaluated on the live page
// through the browser collaborator. The adapters in this package only
// normalize the engines' raw result shapes into model.Violation values,
// including deriving WCAG conformance levels from each tool's native
// tag vocabulary.
//
// Merge combines per-tool violation lists into a single deduplicated
// set keyed by (violation ID, primary selector). The reduction is pure,
// associative, and commutative, so partial results may be merged in
// parallel and in any order.
package analyzer
