package model

// Impact represents the severity of an accessibility violation.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. The fixed order
// minor < moderate < serious < critical is relied on when merging
// violations reported by multiple tools.
type Impact int

const (
	// ImpactMinor indicates cosmetic issues with limited effect on users.
	ImpactMinor Impact = iota

	// ImpactModerate indicates issues that degrade the experience for
	// some assistive-technology users.
	ImpactModerate

	// ImpactSerious indicates issues that block common tasks for
	// assistive-technology users.
	ImpactSerious

	// ImpactCritical indicates issues that make content unusable for
	// assistive-technology users.
	ImpactCritical
)

// String returns a human-readable representation of the impact level.
func (i Impact) String() string {
	switch i {
	case ImpactMinor:
		return "minor"
	case ImpactModerate:
		return "moderate"
	case ImpactSerious:
		return "serious"
	case ImpactCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseImpact converts a tool-reported impact string to an Impact.
// Unknown strings map to ImpactMinor so malformed analyzer output
// never inflates severity.
func ParseImpact(s string) Impact {
	switch s {
	case "critical":
		return ImpactCritical
	case "serious":
		return ImpactSerious
	case "moderate":
		return ImpactModerate
	default:
		return ImpactMinor
	}
}

// MaxImpact returns the higher of two impact levels.
func MaxImpact(a, b Impact) Impact {
	if a > b {
		return a
	}
	return b
}

// WCAGLevel is a WCAG conformance level derived from tool-specific tags.
type WCAGLevel string

const (
	// WCAGLevelA is WCAG level A conformance.
	WCAGLevelA WCAGLevel = "A"

	// WCAGLevelAA is WCAG level AA conformance.
	WCAGLevelAA WCAGLevel = "AA"

	// WCAGLevelAAA is WCAG level AAA conformance.
	WCAGLevelAAA WCAGLevel = "AAA"

	// WCAGLevelUnknown is used when no tag maps to a known level.
	WCAGLevelUnknown WCAGLevel = "Unknown"
)

// Element is a DOM node affected by a violation.
type Element struct {
	// HTML is the outer HTML snippet of the offending node.
	HTML string `json:"html"`

	// Selector is a CSS selector uniquely identifying the node.
	// Elements are deduplicated by selector when violations merge.
	Selector string `json:"selector"`

	// FailureSummary explains why the node failed the rule.
	FailureSummary string `json:"failure_summary,omitempty"`
}

// Violation is a single deduplicated accessibility finding on a page.
// Instances are created by per-tool adapters from raw analyzer output and
// merged by the violation merger: tools accumulate, occurrences sum,
// elements union by selector, and impact is raised to the maximum.
type Violation struct {
	// ID is the tool-independent rule identifier (e.g. "image-alt").
	ID string `json:"id"`

	// Impact is the severity of the violation.
	Impact Impact `json:"impact"`

	// ImpactText is the string form of Impact, kept for serialization.
	ImpactText string `json:"impact_text"`

	// Description explains the rule that was violated.
	Description string `json:"description"`

	// WCAGLevel is the derived WCAG conformance level.
	WCAGLevel WCAGLevel `json:"wcag_level"`

	// Occurrences counts how many times the violation was reported.
	Occurrences int `json:"occurrences"`

	// Tools lists the analyzers that reported the violation, sorted
	// and without duplicates.
	Tools []string `json:"tools"`

	// Elements are the affected DOM nodes, unique by selector.
	Elements []Element `json:"elements"`

	// Remediation suggests how to fix the violation.
	Remediation string `json:"remediation,omitempty"`
}

// PrimarySelector returns the selector of the first affected element.
// Together with ID it forms the deduplication key used during merging.
func (v *Violation) PrimarySelector() string {
	if len(v.Elements) == 0 {
		return ""
	}
	return v.Elements[0].Selector
}

// HasTool reports whether the named analyzer already contributed to
// this violation.
func (v *Violation) HasTool(name string) bool {
	for _, t := range v.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// HasElementSelector reports whether an element with the given selector
// is already recorded.
func (v *Violation) HasElementSelector(selector string) bool {
	for _, e := range v.Elements {
		if e.Selector == selector {
			return true
		}
	}
	return false
}
