package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/a11yscan/a11yscan/internal/model"
)

// axeRunTemplate injects the axe-core engine (if not already present)
// and runs it against the document. The runOnly option selects the rule
// set matching the requested conformance standard.
const axeRunTemplate = `(async () => {
	%s
	const results = await axe.run(document, {
		runOnly: { type: 'tag', values: %s },
	});
	return JSON.stringify(results);
})()`

// axeResults is the subset of the axe-core result document the adapter
// consumes. The engine reports more (passes, incomplete, inapplicable);
// only violations enter the merge.
type axeResults struct {
	Violations []axeViolation `json:"violations"`
}

type axeViolation struct {
	ID          string    `json:"id"`
	Impact      string    `json:"impact"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	HelpURL     string    `json:"helpUrl"`
	Tags        []string  `json:"tags"`
	Nodes       []axeNode `json:"nodes"`
}

type axeNode struct {
	HTML           string   `json:"html"`
	Target         []string `json:"target"`
	FailureSummary string   `json:"failureSummary"`
}

// AxeAnalyzer runs the axe-core rule engine on a page and normalizes
// its violation shapes.
type AxeAnalyzer struct {
	script string
}

// NewAxeAnalyzer creates an AxeAnalyzer around the given engine source.
// The source is the complete axe-core script; it is injected into the
// page before each run.
func NewAxeAnalyzer(engineScript string) *AxeAnalyzer {
	return &AxeAnalyzer{script: engineScript}
}

// Name returns the tool identifier used in merged violations.
func (a *AxeAnalyzer) Name() string {
	return "axe"
}

// Analyze evaluates axe-core against the target page.
func (a *AxeAnalyzer) Analyze(ctx context.Context, target Target) ([]model.Violation, error) {
	tags, err := json.Marshal(axeTagsForStandard(target.Options.Standard))
	if err != nil {
		return nil, fmt.Errorf("axe: encode run tags: %w", err)
	}

	raw, err := target.Evaluator.Evaluate(ctx, fmt.Sprintf(axeRunTemplate, a.script, tags))
	if err != nil {
		return nil, fmt.Errorf("axe: run engine on %s: %w", target.URL, err)
	}

	return a.normalize(raw)
}

// normalize converts the raw axe result document into violations.
func (a *AxeAnalyzer) normalize(raw json.RawMessage) ([]model.Violation, error) {
	// The run template returns a JSON string containing the document.
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var results axeResults
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("axe: decode results: %w", err)
	}

	violations := make([]model.Violation, 0, len(results.Violations))
	for _, rv := range results.Violations {
		if len(rv.Nodes) == 0 {
			continue
		}

		impact := model.ParseImpact(rv.Impact)
		v := model.Violation{
			ID:          rv.ID,
			Impact:      impact,
			ImpactText:  impact.String(),
			Description: rv.Description,
			WCAGLevel:   wcagLevelFromAxeTags(rv.Tags),
			Occurrences: len(rv.Nodes),
			Tools:       []string{a.Name()},
			Remediation: remediation(rv.Help, rv.HelpURL),
		}
		for _, node := range rv.Nodes {
			selector := ""
			if len(node.Target) > 0 {
				selector = node.Target[0]
			}
			v.Elements = append(v.Elements, model.Element{
				HTML:           node.HTML,
				Selector:       selector,
				FailureSummary: node.FailureSummary,
			})
		}
		violations = append(violations, v)
	}

	return violations, nil
}

// axeTagsForStandard maps the configured conformance standard to the
// axe rule tags to run. Unknown standards fall back to WCAG 2.1 AA.
func axeTagsForStandard(standard string) []string {
	switch standard {
	case "wcag2a":
		return []string{"wcag2a", "wcag21a"}
	case "wcag2aaa":
		return []string{"wcag2a", "wcag21a", "wcag2aa", "wcag21aa", "wcag2aaa"}
	default:
		return []string{"wcag2a", "wcag21a", "wcag2aa", "wcag21aa"}
	}
}

// remediation joins the engine's help text and URL.
func remediation(help, helpURL string) string {
	if help == "" {
		return helpURL
	}
	if helpURL == "" {
		return help
	}
	return help + " (" + helpURL + ")"
}
