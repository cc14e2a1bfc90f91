// Package model defines the data types shared across a11yscan:
// crawled page references, accessibility violations, analysis tasks,
// and the final site report.
//
// Types in this package are plain data carriers. Behavior that needs
// collaborators (crawling, analysis, merging) lives in the packages
// that own those collaborators.
package model
