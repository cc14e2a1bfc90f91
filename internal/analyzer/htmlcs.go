package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a11yscan/a11yscan/internal/model"
)

// htmlcsRunTemplate injects the HTML_CodeSniffer engine and collects
// its messages against the requested standard. The wrapper serializes
// each message with a best-effort CSS selector for the offending node.
const htmlcsRunTemplate = `(async () => {
	%s
	const standard = %q;
	return await new Promise((resolve, reject) => {
		HTMLCS.process(standard, document, () => {
			const selectorFor = (el) => {
				if (!el || !el.tagName) return '';
				let sel = el.tagName.toLowerCase();
				if (el.id) return sel + '#' + el.id;
				if (el.className && typeof el.className === 'string') {
					sel += '.' + el.className.trim().split(/\s+/).join('.');
				}
				return sel;
			};
			resolve(JSON.stringify(HTMLCS.getMessages().map(m => ({
				code: m.code,
				type: m.type,
				msg: m.msg,
				selector: selectorFor(m.element),
				html: m.element && m.element.outerHTML ? m.element.outerHTML.slice(0, 512) : '',
			}))));
		});
	});
})()`

// HTML_CodeSniffer message types.
const (
	htmlcsTypeError   = 1
	htmlcsTypeWarning = 2
	htmlcsTypeNotice  = 3
)

// htmlcsMessage is the serialized shape produced by the run template.
type htmlcsMessage struct {
	Code     string `json:"code"`
	Type     int    `json:"type"`
	Msg      string `json:"msg"`
	Selector string `json:"selector"`
	HTML     string `json:"html"`
}

// HTMLCSAnalyzer runs the HTML_CodeSniffer rule engine on a page and
// normalizes its message shapes.
type HTMLCSAnalyzer struct {
	script string
}

// NewHTMLCSAnalyzer creates an HTMLCSAnalyzer around the given engine
// source.
func NewHTMLCSAnalyzer(engineScript string) *HTMLCSAnalyzer {
	return &HTMLCSAnalyzer{script: engineScript}
}

// Name returns the tool identifier used in merged violations.
func (h *HTMLCSAnalyzer) Name() string {
	return "htmlcs"
}

// Analyze evaluates HTML_CodeSniffer against the target page.
func (h *HTMLCSAnalyzer) Analyze(ctx context.Context, target Target) ([]model.Violation, error) {
	standard := htmlcsStandard(target.Options.Standard)

	raw, err := target.Evaluator.Evaluate(ctx, fmt.Sprintf(htmlcsRunTemplate, h.script, standard))
	if err != nil {
		return nil, fmt.Errorf("htmlcs: run engine on %s: %w", target.URL, err)
	}

	return h.normalize(raw, target.Options.IncludeWarnings)
}

// normalize converts serialized HTML_CS messages into violations.
// Messages for the same (rule, selector) pair are collapsed with their
// occurrence count, matching the merge key used downstream.
func (h *HTMLCSAnalyzer) normalize(raw json.RawMessage, includeWarnings bool) ([]model.Violation, error) {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var messages []htmlcsMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("htmlcs: decode messages: %w", err)
	}

	violations := make([]model.Violation, 0, len(messages))
	index := make(map[string]int)

	for _, m := range messages {
		impact, ok := htmlcsImpact(m.Type, includeWarnings)
		if !ok {
			continue
		}

		id := ruleIDFromHTMLCSCode(m.Code)
		key := id + "\x00" + m.Selector

		if i, seen := index[key]; seen {
			violations[i].Occurrences++
			if !violations[i].HasElementSelector(m.Selector) {
				violations[i].Elements = append(violations[i].Elements, model.Element{
					HTML:           m.HTML,
					Selector:       m.Selector,
					FailureSummary: m.Msg,
				})
			}
			continue
		}

		index[key] = len(violations)
		violations = append(violations, model.Violation{
			ID:          id,
			Impact:      impact,
			ImpactText:  impact.String(),
			Description: m.Msg,
			WCAGLevel:   wcagLevelFromHTMLCSCode(m.Code),
			Occurrences: 1,
			Tools:       []string{h.Name()},
			Elements: []model.Element{{
				HTML:           m.HTML,
				Selector:       m.Selector,
				FailureSummary: m.Msg,
			}},
		})
	}

	return violations, nil
}

// htmlcsImpact maps HTML_CS message types onto the shared impact scale.
// Notices are always dropped; warnings only enter when requested.
func htmlcsImpact(msgType int, includeWarnings bool) (model.Impact, bool) {
	switch msgType {
	case htmlcsTypeError:
		return model.ImpactSerious, true
	case htmlcsTypeWarning:
		if includeWarnings {
			return model.ImpactModerate, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// htmlcsStandard maps the configured standard to an HTML_CS standard name.
func htmlcsStandard(standard string) string {
	switch strings.ToLower(standard) {
	case "wcag2a":
		return "WCAG2A"
	case "wcag2aaa":
		return "WCAG2AAA"
	default:
		return "WCAG2AA"
	}
}
