package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/a11yscan/a11yscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.SiteReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeTopViolations(md, report)
	w.writePages(md, report)
	w.writeFailedPages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with audit information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SiteReport) {
	md.H1("Accessibility Audit Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.SiteURL + "`"},
			{"Audit Date", report.Timestamp.Format("2006-01-02 15:04:05 MST")},
			{"Pages Crawled", strconv.Itoa(report.Summary.PagesCrawled)},
			{"Pages Analyzed", strconv.Itoa(report.Summary.PagesAnalyzed)},
			{"Compliance", fmt.Sprintf("%.1f%%", report.Summary.CompliancePercent)},
		},
	})
	md.PlainText("")
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.SiteReport) {
	md.H2("Severity Summary")
	md.PlainText("")

	severity := report.Summary.ViolationsBySeverity
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Occurrences"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(severity["critical"])},
			{"🟠 Serious", strconv.Itoa(severity["serious"])},
			{"🟡 Moderate", strconv.Itoa(severity["moderate"])},
			{"🔵 Minor", strconv.Itoa(severity["minor"])},
			{"**Total**", "**" + strconv.Itoa(report.Summary.TotalViolations) + "**"},
		},
	})
	md.PlainText("")

	if report.Summary.TotalViolations > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.SiteReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Violation Severity Distribution"),
		piechart.WithShowData(true),
	)

	severity := report.Summary.ViolationsBySeverity
	for _, impact := range impactOrder {
		if count := severity[impact.String()]; count > 0 {
			chart.LabelAndIntValue(impact.String(), uint64(count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.SiteReport) {
	severity := report.Summary.ViolationsBySeverity
	switch {
	case severity["critical"] > 0:
		md.Cautionf(
			"Critical accessibility barriers detected! %d critical occurrence(s) make content unusable for assistive-technology users.",
			severity["critical"],
		)
	case severity["serious"] > 0:
		md.Warningf(
			"Serious accessibility issues detected. %d occurrence(s) block common tasks for assistive-technology users.",
			severity["serious"],
		)
	case severity["moderate"] > 0:
		md.Importantf(
			"Moderate accessibility issues found. %d occurrence(s) degrade the experience for some users.",
			severity["moderate"],
		)
	case report.Summary.TotalViolations > 0:
		md.Note("Only minor accessibility issues detected.")
	default:
		md.Tip("No accessibility violations detected.")
	}
	md.PlainText("")
}

// writeTopViolations writes the most-common-violations ranking.
func (w *MarkdownWriter) writeTopViolations(md *markdown.Markdown, report *model.SiteReport) {
	md.H2("Most Common Violations")
	md.PlainText("")

	if len(report.MostCommonViolations) == 0 {
		md.PlainText("No violations found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.MostCommonViolations))
	for i, freq := range report.MostCommonViolations {
		description := freq.Description
		if description == "" {
			description = "-"
		}
		rows[i] = []string{
			"`" + freq.ID + "`",
			freq.ImpactText,
			description,
			strconv.Itoa(freq.Occurrences),
			strconv.Itoa(freq.AffectedPages),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Rule", "Impact", "Description", "Occurrences", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePages writes the per-page result table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.SiteReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.PageReports) == 0 {
		md.PlainText("No pages analyzed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.PageReports))
	for i, page := range report.PageReports {
		status := "✅"
		if !page.Compliant() {
			status = "❌"
		}
		cached := "-"
		if page.FromCache {
			cached = "yes"
		}
		rows[i] = []string{
			"`" + page.URL + "`",
			strconv.Itoa(page.Depth),
			status,
			strconv.Itoa(page.ViolationCount()),
			cached,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Compliant", "Violations", "Cached"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailedPages writes the failed-pages list with reasons.
func (w *MarkdownWriter) writeFailedPages(md *markdown.Markdown, report *model.SiteReport) {
	if len(report.FailedPages) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")

	rows := make([][]string, len(report.FailedPages))
	for i, failed := range report.FailedPages {
		rows[i] = []string{"`" + failed.URL + "`", strconv.Itoa(failed.Depth), failed.Reason}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("Report generated by [a11yscan](https://github.com/a11yscan/a11yscan).")
}
