package report

import (
	"bytes"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/qaops/migratrack/internal/trend"
)

// chartRenderer is anything that can render itself to a writer; both
// go-echarts chart types satisfy it.
type chartRenderer interface {
	Render(w io.Writer) error
}

// trendChart renders the daily adoption samples as an interactive line
// chart. The markup loads the echarts runtime from its CDN, so the page
// works as a single self-contained file.
func trendChart(project string, points []trend.TrendPoint) (string, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Adoption trend: " + project}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithInitializationOpts(opts.Initialization{
			Height: "320px",
			Width:  "100%",
		}),
	)

	xAxis := make([]string, len(points))
	yAxis := make([]opts.LineData, len(points))
	for i, point := range points {
		xAxis[i] = point.Date.Format("Jan 02")
		yAxis[i] = opts.LineData{Value: point.AdoptionRate * 100}
	}

	line.SetXAxis(xAxis).
		AddSeries("Adoption %", yAxis).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := renderChart(line, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderChart(c chartRenderer, w io.Writer) error {
	return c.Render(w)
}
