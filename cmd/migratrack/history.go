package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/history"
)

// runHistory lists recent tracking runs from the run log, or one run in full
// when --run is given.
func runHistory(ctx context.Context, cfg *config.Config, selected string, out io.Writer) error {
	if !cfg.History.IsEnabled() {
		return fmt.Errorf("run history is disabled in the configuration")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if CLI.History.Run != "" {
		return showRun(ctx, store, CLI.History.Run, out)
	}

	runs, err := store.RecentRuns(ctx, selected, CLI.History.Limit)
	if err != nil {
		return err
	}

	if CLI.History.JSON {
		return writeHistoryJSON(out, runs)
	}
	return writeHistoryTable(out, runs)
}

// showRun prints one run with its recorded events.
func showRun(ctx context.Context, store *history.Store, runID string, out io.Writer) error {
	run, events, err := store.GetByRunID(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %q not found", runID)
	}

	if CLI.History.JSON {
		return writeHistoryJSON(out, struct {
			Run    *history.Run    `json:"run"`
			Events []history.Event `json:"events,omitempty"`
		}{run, events})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", run.RunID)
	fmt.Fprintf(tw, "Project\t%s\n", run.Project)
	fmt.Fprintf(tw, "Started\t%s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Duration\t%s\n", run.Duration)
	fmt.Fprintf(tw, "Outcome\t%s\n", run.Outcome)
	fmt.Fprintf(tw, "Status\t%s\n", run.Status)
	fmt.Fprintf(tw, "Adoption\t%.1f%%\n", run.AdoptionRate*100)
	fmt.Fprintf(tw, "Tests\t%d (%d legacy, %d target)\n", run.TotalTests, run.PrimaryCount, run.SecondaryCount)

	if len(events) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "EVENT\tSOURCE\tMESSAGE\n")
		for _, event := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", event.Type, event.Source, event.Message)
		}
	}
	return tw.Flush()
}

func writeHistoryTable(out io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN\tPROJECT\tSTARTED\tOUTCOME\tSTATUS\tADOPTION\tTESTS\tDURATION\n")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1f%%\t%d\t%s\n",
			shortRunID(run.RunID),
			run.Project,
			run.StartedAt.Format("2006-01-02 15:04"),
			run.Outcome,
			run.Status,
			run.AdoptionRate*100,
			run.TotalTests,
			run.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

func writeHistoryJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// shortRunID abbreviates a run UUID for table display; --run accepts the
// full ID shown by --json.
func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
