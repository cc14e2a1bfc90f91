package analyzer

import (
	"strings"

	"github.com/a11yscan/a11yscan/internal/model"
)

// axeTagLevels maps axe-core rule tags to WCAG conformance levels.
// Axe tags rules with the standard version and level combined
// (wcag2a = WCAG 2.0 level A, wcag21aa = WCAG 2.1 level AA, ...).
// The mapping is fixed: new axe versions add tags but do not change
// the meaning of existing ones.
var axeTagLevels = map[string]model.WCAGLevel{
	"wcag2a":    model.WCAGLevelA,
	"wcag21a":   model.WCAGLevelA,
	"wcag22a":   model.WCAGLevelA,
	"wcag2aa":   model.WCAGLevelAA,
	"wcag21aa":  model.WCAGLevelAA,
	"wcag22aa":  model.WCAGLevelAA,
	"wcag2aaa":  model.WCAGLevelAAA,
	"wcag21aaa": model.WCAGLevelAAA,
	"wcag22aaa": model.WCAGLevelAAA,
}

// wcagLevelFromAxeTags resolves the conformance level for an axe rule
// from its tag list. When several levels are tagged the strictest wins,
// matching how axe ruleset selection works.
func wcagLevelFromAxeTags(tags []string) model.WCAGLevel {
	level := model.WCAGLevelUnknown
	for _, tag := range tags {
		if l, ok := axeTagLevels[strings.ToLower(tag)]; ok {
			level = maxWCAGLevel(level, l)
		}
	}
	return level
}

// wcagLevelFromHTMLCSCode resolves the conformance level from an
// HTML_CodeSniffer message code. Codes are dot-separated with the
// standard as the first segment, e.g.
// "WCAG2AA.Principle1.Guideline1_1.1_1_1.H37".
func wcagLevelFromHTMLCSCode(code string) model.WCAGLevel {
	standard, _, ok := strings.Cut(code, ".")
	if !ok {
		standard = code
	}
	switch strings.ToUpper(standard) {
	case "WCAG2A":
		return model.WCAGLevelA
	case "WCAG2AA":
		return model.WCAGLevelAA
	case "WCAG2AAA":
		return model.WCAGLevelAAA
	default:
		return model.WCAGLevelUnknown
	}
}

// wcagLevelRank orders levels for symmetric conflict resolution during
// merges: Unknown < A < AA < AAA.
func wcagLevelRank(l model.WCAGLevel) int {
	switch l {
	case model.WCAGLevelA:
		return 1
	case model.WCAGLevelAA:
		return 2
	case model.WCAGLevelAAA:
		return 3
	default:
		return 0
	}
}

// maxWCAGLevel returns the stricter of two conformance levels.
func maxWCAGLevel(a, b model.WCAGLevel) model.WCAGLevel {
	if wcagLevelRank(a) >= wcagLevelRank(b) {
		return a
	}
	return b
}

// htmlcsTechniqueIDs maps common HTML_CodeSniffer technique suffixes to
// the rule identifiers axe uses, so the same underlying failure
// deduplicates across tools. Codes without a mapping keep their full
// HTML_CS code as the ID.
var htmlcsTechniqueIDs = map[string]string{
	"H37":  "image-alt",
	"H36":  "input-image-alt",
	"H44":  "label",
	"H64":  "frame-title",
	"H25":  "document-title",
	"H57":  "html-has-lang",
	"G18":  "color-contrast",
	"G145": "color-contrast",
	"H30":  "link-name",
	"H42":  "heading-order",
}

// ruleIDFromHTMLCSCode derives the cross-tool rule ID for an HTML_CS
// message code.
func ruleIDFromHTMLCSCode(code string) string {
	segments := strings.Split(code, ".")
	last := segments[len(segments)-1]

	// Technique segments can be comma-joined (e.g. "G18,G145").
	for _, technique := range strings.Split(last, ",") {
		if id, ok := htmlcsTechniqueIDs[technique]; ok {
			return id
		}
	}
	return code
}
