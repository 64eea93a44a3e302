package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/qaops/migratrack/internal/trend"
)

// renderTable writes the terminal view: a metrics block, the trend summary
// and the recent samples, aligned with tabwriter. Counts go through the
// locale printer so large inventories stay readable.
func (r *Renderer) renderTable(w io.Writer, rep *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Migration report\t%s\n", rep.Project)
	fmt.Fprintf(tw, "Generated\t%s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if rep.Outcome != "" {
		fmt.Fprintf(tw, "Outcome\t%s\n", rep.Outcome)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "METRIC\tVALUE\n")
	fmt.Fprintf(tw, "Status\t%s\n", rep.Metrics.Status)
	fmt.Fprintf(tw, "Total tests\t%s\n", r.printer.Sprintf("%d", rep.Metrics.TotalTests))
	fmt.Fprintf(tw, "In target (migrated)\t%s\n", r.printer.Sprintf("%d", rep.Metrics.SecondaryCount))
	fmt.Fprintf(tw, "In legacy (remaining)\t%s\n", r.printer.Sprintf("%d", rep.Metrics.Remaining))
	fmt.Fprintf(tw, "Adoption rate\t%s\n", formatPercent(rep.Metrics.AdoptionRate))
	fmt.Fprintln(tw)

	writeTrendRows(tw, rep.Trend)

	if len(rep.Warnings) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "WARNINGS\t\n")
		for _, warning := range rep.Warnings {
			fmt.Fprintf(tw, "!\t%s\n", warning)
		}
	}

	return tw.Flush()
}

// renderTrendTable is the trend-only terminal view.
func (r *Renderer) renderTrendTable(w io.Writer, project string, tr trend.TrendResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Adoption trend\t%s\n", project)
	fmt.Fprintln(tw)
	writeTrendRows(tw, tr)

	return tw.Flush()
}

func writeTrendRows(tw *tabwriter.Writer, tr trend.TrendResult) {
	fmt.Fprintf(tw, "TREND\tVALUE\n")
	fmt.Fprintf(tw, "Direction\t%s\n", tr.Direction)
	fmt.Fprintf(tw, "Current rate\t%s\n", formatPercent(tr.CurrentRate))
	fmt.Fprintf(tw, "Average rate\t%s\n", formatPercent(tr.AverageRate))
	fmt.Fprintf(tw, "Daily change\t%s\n", formatDailyChange(tr.DailyChange))
	fmt.Fprintf(tw, "Projected completion\t%s\n", formatProjection(tr.ProjectedCompletion))
	fmt.Fprintf(tw, "Samples\t%d\n", tr.SampleCount)

	if len(tr.Recent) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "DATE\tADOPTION\tTOTAL\n")
		for _, point := range tr.Recent {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", formatDay(point.Date), formatPercent(point.AdoptionRate), point.TotalTests)
		}
	}
}
