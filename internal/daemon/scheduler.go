package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Scheduler wraps gocron for managing the periodic tracking job.
type Scheduler struct {
	scheduler gocron.Scheduler
	jobID     uuid.UUID
	hasJob    bool
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{scheduler: s}, nil
}

// SchedulePeriodicRuns schedules the tracking task at the given interval,
// replacing any previously scheduled job. The first execution fires
// immediately; a task still running when the next tick arrives is not run
// twice, the tick is rescheduled instead. Returns the job ID.
func (s *Scheduler) SchedulePeriodicRuns(interval time.Duration, task func()) (string, error) {
	if s.hasJob {
		if err := s.scheduler.RemoveJob(s.jobID); err != nil {
			slog.Warn("Failed to remove previous tracking job", "error", err)
		}
		s.hasJob = false
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("tracking-run"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create tracking job: %w", err)
	}

	s.jobID = job.ID()
	s.hasJob = true
	return job.ID().String(), nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for a running task.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
