package history

import (
	"context"
	"testing"
	"time"
)

func sampleRun(runID, project string, startedAt time.Time) Run {
	return Run{
		RunID:          runID,
		Project:        project,
		StartedAt:      startedAt,
		Duration:       1500 * time.Millisecond,
		Outcome:        "degraded",
		Status:         "in_progress",
		AdoptionRate:   0.42,
		TotalTests:     100,
		PrimaryCount:   58,
		SecondaryCount: 42,
	}
}

func TestAppendAndGetByRunID(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	started := time.Date(2024, 1, 17, 8, 30, 0, 0, time.UTC)
	run := sampleRun("run-1", "PAY", started)
	events := []Event{
		{Type: EventSourceDegraded, Source: "secondary", Message: "retries exhausted"},
		{Type: EventStaleCacheServed, Source: "secondary", Message: "served 42 stale records"},
	}

	if err := store.AppendRun(ctx, run, events); err != nil {
		t.Fatalf("failed to append run: %v", err)
	}

	got, gotEvents, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Project != "PAY" || got.Outcome != "degraded" || got.Status != "in_progress" {
		t.Errorf("unexpected run %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, got.StartedAt)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("expected duration 1.5s, got %v", got.Duration)
	}
	if got.AdoptionRate != 0.42 || got.TotalTests != 100 {
		t.Errorf("unexpected metrics %+v", got)
	}

	if len(gotEvents) != 2 {
		t.Fatalf("expected 2 events, got %d", len(gotEvents))
	}
	if gotEvents[0].Type != EventSourceDegraded || gotEvents[0].Source != "secondary" {
		t.Errorf("unexpected first event %+v", gotEvents[0])
	}
	if gotEvents[1].Message != "served 42 stale records" {
		t.Errorf("unexpected second event %+v", gotEvents[1])
	}
}

func TestGetByRunIDMissing(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	run, events, err := store.GetByRunID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("expected nil error for missing run, got %v", err)
	}
	if run != nil || events != nil {
		t.Errorf("expected nil results, got %+v %+v", run, events)
	}
}

func TestGetRange(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := sampleRun(runID(i), "PAY", base.Add(time.Duration(i)*24*time.Hour))
		if err := store.AppendRun(ctx, run, nil); err != nil {
			t.Fatalf("failed to append run %d: %v", i, err)
		}
	}

	runs, err := store.GetRange(ctx, base.Add(24*time.Hour), base.Add(3*24*time.Hour))
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs in range, got %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.Before(runs[i-1].StartedAt) {
			t.Error("range results not oldest first")
		}
	}
}

func TestRecentRuns(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	projects := []string{"PAY", "CHECKOUT", "PAY", "PAY"}
	for i, project := range projects {
		run := sampleRun(runID(i), project, base.Add(time.Duration(i)*time.Hour))
		if err := store.AppendRun(ctx, run, nil); err != nil {
			t.Fatalf("failed to append run %d: %v", i, err)
		}
	}

	runs, err := store.RecentRuns(ctx, "", 2)
	if err != nil {
		t.Fatalf("failed to get recent runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != runID(3) || runs[1].RunID != runID(2) {
		t.Errorf("expected newest first, got %s then %s", runs[0].RunID, runs[1].RunID)
	}

	payRuns, err := store.RecentRuns(ctx, "PAY", 10)
	if err != nil {
		t.Fatalf("failed to get project runs: %v", err)
	}
	if len(payRuns) != 3 {
		t.Fatalf("expected 3 PAY runs, got %d", len(payRuns))
	}
	for _, run := range payRuns {
		if run.Project != "PAY" {
			t.Errorf("project filter leaked run for %s", run.Project)
		}
	}
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	run := sampleRun("run-1", "PAY", time.Now().UTC())
	if err := store.AppendRun(ctx, run, nil); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if err := store.AppendRun(ctx, run, nil); err == nil {
		t.Fatal("expected duplicate run_id to be rejected")
	}
}

func runID(i int) string {
	return "run-" + string(rune('a'+i))
}
