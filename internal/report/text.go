package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/a11yscan/a11yscan/internal/model"
)

// impactOrder lists severities from worst to least for display.
var impactOrder = []model.Impact{
	model.ImpactCritical,
	model.ImpactSerious,
	model.ImpactModerate,
	model.ImpactMinor,
}

// TextWriter outputs human-readable text reports for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type TextWriter struct {
	baseWriter

	// printer localizes number formatting (thousands separators on
	// occurrence counts).
	printer *message.Printer

	// showEmpty controls whether sections with no findings are shown.
	showEmpty bool

	// verbose adds per-page detail to the output.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with per-page details.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *TextWriter) Write(report *model.SiteReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeTopViolations(&sb, report)
	if w.verbose {
		w.writePages(&sb, report)
	}
	w.writeFailedPages(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *TextWriter) writeHeader(sb *strings.Builder, report *model.SiteReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                    ACCESSIBILITY AUDIT REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Site:           %s\n", report.SiteURL))
	sb.WriteString(fmt.Sprintf("Audit Date:     %s\n", report.Timestamp.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Pages Crawled:  %d\n", report.Summary.PagesCrawled))
	sb.WriteString(fmt.Sprintf("Pages Analyzed: %d\n", report.Summary.PagesAnalyzed))
	sb.WriteString(fmt.Sprintf("Duration:       %s\n", report.Summary.Duration.Round(10*time.Millisecond)))
	sb.WriteString("\n")
}

func (w *TextWriter) writeSummary(sb *strings.Builder, report *model.SiteReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SEVERITY SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, impact := range impactOrder {
		count := report.Summary.ViolationsBySeverity[impact.String()]
		sb.WriteString(w.printer.Sprintf("  %-9s %d\n", strings.ToUpper(impact.String())+":", count))
	}
	sb.WriteString("\n")
	sb.WriteString(w.printer.Sprintf("  TOTAL:    %d violations\n", report.Summary.TotalViolations))
	sb.WriteString(fmt.Sprintf("  COMPLIANCE: %.1f%% of pages violation-free\n", report.Summary.CompliancePercent))
	sb.WriteString("\n")
}

func (w *TextWriter) writeTopViolations(sb *strings.Builder, report *model.SiteReport) {
	if len(report.MostCommonViolations) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("MOST COMMON VIOLATIONS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.MostCommonViolations) == 0 {
		sb.WriteString("  No violations found\n\n")
		return
	}

	for i, freq := range report.MostCommonViolations {
		sb.WriteString(fmt.Sprintf("  %2d. [%s] %s\n", i+1, w.severityIndicator(freq.Impact), freq.ID))
		if freq.Description != "" {
			sb.WriteString(fmt.Sprintf("      %s\n", freq.Description))
		}
		sb.WriteString(w.printer.Sprintf("      %d occurrences on %d pages\n", freq.Occurrences, freq.AffectedPages))
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writePages(sb *strings.Builder, report *model.SiteReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, page := range report.PageReports {
		marker := "OK "
		if !page.Compliant() {
			marker = "!! "
		}
		sb.WriteString(w.printer.Sprintf("  [%s] %s (%d violations", marker, page.URL, page.ViolationCount()))
		if page.FromCache {
			sb.WriteString(", cached")
		}
		sb.WriteString(")\n")

		for _, v := range page.Violations {
			sb.WriteString(fmt.Sprintf("       - [%s] %s x%d\n", v.ImpactText, v.ID, v.Occurrences))
		}
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeFailedPages(sb *strings.Builder, report *model.SiteReport) {
	if len(report.FailedPages) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILED PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.FailedPages) == 0 {
		sb.WriteString("  No failed pages\n")
	} else {
		for _, failed := range report.FailedPages {
			sb.WriteString(fmt.Sprintf("  [x] %s\n      %s\n", failed.URL, failed.Reason))
		}
	}
	sb.WriteString("\n")
}

func (w *TextWriter) severityIndicator(impact model.Impact) string {
	switch impact {
	case model.ImpactCritical:
		return "!!!"
	case model.ImpactSerious:
		return "!!"
	case model.ImpactModerate:
		return "!"
	default:
		return "-"
	}
}

func (w *TextWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by a11yscan\n")
	sb.WriteString("https://github.com/a11yscan/a11yscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
