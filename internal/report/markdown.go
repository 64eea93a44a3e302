package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qaops/migratrack/internal/trend"
)

// renderMarkdown writes the report as a markdown document. The same body
// feeds the HTML rendering, so everything here has to survive a CommonMark
// round trip.
func (r *Renderer) renderMarkdown(w io.Writer, rep *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Migration report: %s\n\n", rep.Project)
	fmt.Fprintf(&b, "Generated %s", rep.GeneratedAt.Format("2006-01-02 15:04 MST"))
	if rep.RunID != "" {
		fmt.Fprintf(&b, " (run `%s`)", rep.RunID)
	}
	b.WriteString("\n\n")

	b.WriteString("## Adoption\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| Status | %s |\n", rep.Metrics.Status)
	fmt.Fprintf(&b, "| Total tests | %s |\n", r.printer.Sprintf("%d", rep.Metrics.TotalTests))
	fmt.Fprintf(&b, "| In target (migrated) | %s |\n", r.printer.Sprintf("%d", rep.Metrics.SecondaryCount))
	fmt.Fprintf(&b, "| In legacy (remaining) | %s |\n", r.printer.Sprintf("%d", rep.Metrics.Remaining))
	fmt.Fprintf(&b, "| Adoption rate | %s |\n", formatPercent(rep.Metrics.AdoptionRate))
	b.WriteString("\n")

	writeTrendMarkdown(&b, rep.Trend)

	if len(rep.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, warning := range rep.Warnings {
			fmt.Fprintf(&b, "- %s\n", warning)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// renderTrendMarkdown is the trend-only markdown view.
func (r *Renderer) renderTrendMarkdown(w io.Writer, project string, tr trend.TrendResult, generatedAt time.Time) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Adoption trend: %s\n\n", project)
	fmt.Fprintf(&b, "Generated %s\n\n", generatedAt.UTC().Format("2006-01-02 15:04 MST"))
	writeTrendMarkdown(&b, tr)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTrendMarkdown(b *strings.Builder, tr trend.TrendResult) {
	b.WriteString("## Trend\n\n")
	fmt.Fprintf(b, "- Direction: **%s**\n", tr.Direction)
	fmt.Fprintf(b, "- Current rate: %s\n", formatPercent(tr.CurrentRate))
	fmt.Fprintf(b, "- Average rate: %s\n", formatPercent(tr.AverageRate))
	fmt.Fprintf(b, "- Daily change: %s\n", formatDailyChange(tr.DailyChange))
	fmt.Fprintf(b, "- Projected completion: %s\n", formatProjection(tr.ProjectedCompletion))
	b.WriteString("\n")

	if len(tr.Recent) == 0 {
		return
	}
	b.WriteString("### Recent samples\n\n")
	b.WriteString("| Date | Adoption | Total |\n")
	b.WriteString("|---|---|---|\n")
	for _, point := range tr.Recent {
		fmt.Fprintf(b, "| %s | %s | %d |\n", formatDay(point.Date), formatPercent(point.AdoptionRate), point.TotalTests)
	}
	b.WriteString("\n")
}
