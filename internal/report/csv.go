package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/qaops/migratrack/internal/trend"
)

// renderCSV writes the report as one wide row so spreadsheet imports get a
// stable column set regardless of how the run went.
func (r *Renderer) renderCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)

	header := []string{
		"project", "generated_at", "run_id", "outcome", "status",
		"total_tests", "primary_count", "secondary_count", "adoption_rate", "remaining",
		"trend_direction", "daily_change", "projected_completion", "warnings",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := []string{
		rep.Project,
		rep.GeneratedAt.Format("2006-01-02T15:04:05Z"),
		rep.RunID,
		rep.Outcome,
		string(rep.Metrics.Status),
		strconv.Itoa(rep.Metrics.TotalTests),
		strconv.Itoa(rep.Metrics.PrimaryCount),
		strconv.Itoa(rep.Metrics.SecondaryCount),
		formatRate(rep.Metrics.AdoptionRate),
		strconv.Itoa(rep.Metrics.Remaining),
		string(rep.Trend.Direction),
		formatRate(rep.Trend.DailyChange),
		formatProjection(rep.Trend.ProjectedCompletion),
		strconv.Itoa(len(rep.Warnings)),
	}
	if err := cw.Write(row); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// writeTrendCSV writes one row per daily sample, oldest first.
func writeTrendCSV(w io.Writer, points []trend.TrendPoint) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"date", "adoption_rate", "total_tests"}); err != nil {
		return err
	}
	for _, point := range points {
		row := []string{
			formatDay(point.Date),
			formatRate(point.AdoptionRate),
			strconv.Itoa(point.TotalTests),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatRate keeps machine-readable rates as plain decimals, not percents.
func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 4, 64)
}
