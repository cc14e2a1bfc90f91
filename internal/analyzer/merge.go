package analyzer

import (
	"sort"

	"github.com/a11yscan/a11yscan/internal/model"
)

// mergeKey identifies the same finding across tools: a rule identifier
// plus the selector of the first affected element.
type mergeKey struct {
	id       string
	selector string
}

// Merge folds violation lists from multiple tools into one deduplicated
// list. Entries sharing (rule ID, primary selector) are combined:
// occurrences sum, tools and elements union, and the impact and WCAG
// level take the strictest value reported by any tool. The result is
// ordered by impact descending, then occurrences descending, then ID.
func Merge(lists ...[]model.Violation) []model.Violation {
	merged := make(map[mergeKey]*model.Violation)
	order := make([]mergeKey, 0)

	for _, list := range lists {
		for _, v := range list {
			key := mergeKey{id: v.ID, selector: v.PrimarySelector()}

			existing, ok := merged[key]
			if !ok {
				clone := v
				clone.Tools = append([]string(nil), v.Tools...)
				clone.Elements = append([]model.Element(nil), v.Elements...)
				merged[key] = &clone
				order = append(order, key)
				continue
			}

			existing.Occurrences += v.Occurrences
			existing.Impact = model.MaxImpact(existing.Impact, v.Impact)
			existing.ImpactText = existing.Impact.String()
			existing.WCAGLevel = maxWCAGLevel(existing.WCAGLevel, v.WCAGLevel)
			if existing.Description == "" {
				existing.Description = v.Description
			}
			if existing.Remediation == "" {
				existing.Remediation = v.Remediation
			}
			for _, tool := range v.Tools {
				if !existing.HasTool(tool) {
					existing.Tools = append(existing.Tools, tool)
				}
			}
			for _, el := range v.Elements {
				if !existing.HasElementSelector(el.Selector) {
					existing.Elements = append(existing.Elements, el)
				}
			}
		}
	}

	out := make([]model.Violation, 0, len(order))
	for _, key := range order {
		v := merged[key]
		sort.Strings(v.Tools)
		out = append(out, *v)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Impact != out[j].Impact {
			return out[i].Impact > out[j].Impact
		}
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].ID < out[j].ID
	})

	return out
}
