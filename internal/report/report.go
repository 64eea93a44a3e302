// Package report renders metrics and trend results for human and machine
// consumption. The pipeline never selects a format; the CLI picks one and
// hands the data here. Supported formats: table (terminal), json, csv,
// markdown and a standalone HTML page with an embedded trend chart.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/qaops/migratrack/internal/adoption"
	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/pipeline"
	"github.com/qaops/migratrack/internal/trend"
)

// Report is the render-ready view of one tracking run.
type Report struct {
	Project     string    `json:"project"`
	GeneratedAt time.Time `json:"generated_at"`
	RunID       string    `json:"run_id,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`

	Metrics adoption.MetricsResult `json:"metrics"`
	Trend   trend.TrendResult      `json:"trend"`

	// Warnings carries per-source degradation notes, empty on a clean run.
	Warnings []string `json:"warnings,omitempty"`
}

// FromResult converts a pipeline result into a report.
func FromResult(res *pipeline.Result, generatedAt time.Time) *Report {
	return &Report{
		Project:     res.Project,
		GeneratedAt: generatedAt.UTC(),
		RunID:       res.RunID,
		Outcome:     string(res.Outcome),
		Metrics:     res.Metrics,
		Trend:       res.Trend,
		Warnings:    res.Warnings(),
	}
}

// Renderer writes reports in one configured output format.
type Renderer struct {
	format  config.OutputFormat
	printer *message.Printer
}

// NewRenderer creates a renderer for the given format. Unknown formats fall
// back to the table rendering, matching the config normalizer.
func NewRenderer(format config.OutputFormat) *Renderer {
	return &Renderer{
		format:  config.NormalizeOutputFormat(string(format)),
		printer: message.NewPrinter(language.English),
	}
}

// Render writes the full report to w.
func (r *Renderer) Render(w io.Writer, rep *Report) error {
	switch r.format {
	case config.FormatJSON:
		return writeJSON(w, rep)
	case config.FormatCSV:
		return r.renderCSV(w, rep)
	case config.FormatMarkdown:
		return r.renderMarkdown(w, rep)
	case config.FormatHTML:
		return r.renderHTML(w, rep)
	default:
		return r.renderTable(w, rep)
	}
}

// RenderTrend writes a trend-only view to w, used by the history-focused
// trend command where no fresh metrics exist.
func (r *Renderer) RenderTrend(w io.Writer, project string, tr trend.TrendResult, generatedAt time.Time) error {
	switch r.format {
	case config.FormatJSON:
		return writeJSON(w, struct {
			Project     string            `json:"project"`
			GeneratedAt time.Time         `json:"generated_at"`
			Trend       trend.TrendResult `json:"trend"`
		}{project, generatedAt.UTC(), tr})
	case config.FormatCSV:
		return writeTrendCSV(w, tr.Recent)
	case config.FormatMarkdown:
		return r.renderTrendMarkdown(w, project, tr, generatedAt)
	case config.FormatHTML:
		return r.renderTrendHTML(w, project, tr, generatedAt)
	default:
		return r.renderTrendTable(w, project, tr)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatPercent renders a [0,1] rate as a percentage with one decimal.
func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// formatDailyChange renders the per-day rate delta in percentage points.
func formatDailyChange(change float64) string {
	return fmt.Sprintf("%+.2fpp/day", change*100)
}

// formatProjection renders a completion date, or a dash when there is none.
func formatProjection(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
