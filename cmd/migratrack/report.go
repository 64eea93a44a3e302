package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/pipeline"
	"github.com/qaops/migratrack/internal/report"
	"github.com/qaops/migratrack/internal/snapshot"
	"github.com/qaops/migratrack/internal/trend"
)

// runReport executes the full pipeline per selected project and renders the
// outcome. --cached skips the network and reports from the latest stored
// snapshots instead.
func runReport(ctx context.Context, cfg *config.Config, selected string, out io.Writer) error {
	projects, err := resolveProjects(cfg, selected)
	if err != nil {
		return err
	}
	format, err := outputFormat(cfg, CLI.Report.Format)
	if err != nil {
		return err
	}

	ctx, cancel := withDeadline(ctx, CLI.Report.Deadline)
	defer cancel()

	asm, err := pipeline.Assemble(ctx, cfg, nil, pipeline.WithParallelFetch(CLI.Report.Parallel))
	if err != nil {
		return err
	}
	defer asm.Close() //nolint:errcheck

	renderer := report.NewRenderer(format)
	for i, project := range projects {
		var result *pipeline.Result
		if CLI.Report.Cached {
			result, err = asm.Runner.Analyze(ctx, project)
			if err != nil {
				return err
			}
		} else {
			result = asm.Runner.Run(ctx, project)
		}

		rep := report.FromResult(result, time.Now())
		if CLI.Report.Write {
			if err := writeReportFile(cfg.Output.Directory, project, format, renderer, rep, out); err != nil {
				return err
			}
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := renderer.Render(out, rep); err != nil {
			return err
		}
	}
	return nil
}

// runTrend derives the historical trend from stored snapshots only; it never
// touches the network and needs no credentials to be reachable.
func runTrend(ctx context.Context, cfg *config.Config, selected string, out io.Writer) error {
	projects, err := resolveProjects(cfg, selected)
	if err != nil {
		return err
	}
	format, err := outputFormat(cfg, CLI.Trend.Format)
	if err != nil {
		return err
	}

	windowDays := CLI.Trend.Window
	if windowDays <= 0 {
		windowDays = cfg.Trend.WindowDays
	}

	store, err := snapshot.NewStore(cfg.Snapshots.Directory)
	if err != nil {
		return err
	}

	renderer := report.NewRenderer(format)
	now := time.Now()
	for i, project := range projects {
		primary, err := store.Read(ctx, project, string(config.RolePrimary), windowDays)
		if err != nil {
			return err
		}
		secondary, err := store.Read(ctx, project, string(config.RoleSecondary), windowDays)
		if err != nil {
			return err
		}

		points := trend.BuildDailyPoints(primary, secondary)
		result := trend.Analyze(points, now, trend.Options{RecentSamples: cfg.Trend.Samples})

		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := renderer.RenderTrend(out, project, result, now); err != nil {
			return err
		}
	}
	return nil
}

// runFetch captures snapshots for every selected project without rendering a
// report. A project whose run produced no data at all counts as failed.
func runFetch(ctx context.Context, cfg *config.Config, selected string) error {
	projects, err := resolveProjects(cfg, selected)
	if err != nil {
		return err
	}

	ctx, cancel := withDeadline(ctx, CLI.Fetch.Deadline)
	defer cancel()

	asm, err := pipeline.Assemble(ctx, cfg, nil, pipeline.WithParallelFetch(CLI.Fetch.Parallel))
	if err != nil {
		return err
	}
	defer asm.Close() //nolint:errcheck

	failed := 0
	for _, project := range projects {
		result := asm.Runner.Run(ctx, project)
		if result.Outcome == pipeline.OutcomeFailed {
			failed++
		}
		for _, warning := range result.Warnings() {
			slog.Warn(warning, logfields.Project(project))
		}
		slog.Info("Capture finished",
			logfields.Project(project),
			logfields.Records(result.Metrics.TotalTests),
			logfields.Outcome(string(result.Outcome)))
	}

	if failed > 0 {
		return fmt.Errorf("capture produced no data for %d of %d projects", failed, len(projects))
	}
	return nil
}

// outputFormat resolves the effective format: an explicit flag must name a
// known format, otherwise the configured default applies.
func outputFormat(cfg *config.Config, flag string) (config.OutputFormat, error) {
	if flag == "" {
		return cfg.Output.Format, nil
	}
	return config.StrictOutputFormat(flag)
}

// writeReportFile renders one report into the output directory under a
// timestamped, project-scoped name and prints where it landed.
func writeReportFile(dir, project string, format config.OutputFormat, renderer *report.Renderer, rep *report.Report, out io.Writer) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.%s", project, rep.GeneratedAt.Format("20060102T150405Z"), formatExtension(format))
	path := filepath.Join(dir, name)

	f, err := os.Create(path) // #nosec G304 -- path is built from the configured output directory
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := renderer.Render(f, rep); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Report written to %s\n", path)
	return nil
}

func formatExtension(format config.OutputFormat) string {
	switch format {
	case config.FormatJSON:
		return "json"
	case config.FormatCSV:
		return "csv"
	case config.FormatMarkdown:
		return "md"
	case config.FormatHTML:
		return "html"
	default:
		return "txt"
	}
}
