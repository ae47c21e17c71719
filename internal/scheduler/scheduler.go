package scheduler

import (
	"context"
	"time"

	"log/slog"

	"github.com/gridcast/gridcast/internal/database"
)

// JobScheduler runs scheduled forecast jobs when they come due.
type JobScheduler struct {
	jobRepo       *database.JobRepository
	runner        *Runner
	logger        *slog.Logger
	stopChan      chan struct{}
	checkInterval time.Duration
}

// NewJobScheduler creates a new job scheduler.
func NewJobScheduler(jobRepo *database.JobRepository, runner *Runner, logger *slog.Logger) *JobScheduler {
	return &JobScheduler{
		jobRepo:       jobRepo,
		runner:        runner,
		logger:        logger,
		stopChan:      make(chan struct{}),
		checkInterval: 1 * time.Minute,
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or the
// context is cancelled.
func (s *JobScheduler) Start(ctx context.Context) {
	s.logger.Info("starting job scheduler", "check_interval", s.checkInterval)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	// Run once immediately on start
	s.checkAndRunJobs(ctx)

	for {
		select {
		case <-ticker.C:
			s.checkAndRunJobs(ctx)
		case <-s.stopChan:
			s.logger.Info("job scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("job scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler.
func (s *JobScheduler) Stop() {
	close(s.stopChan)
}

func (s *JobScheduler) checkAndRunJobs(ctx context.Context) {
	jobs, err := s.jobRepo.ClaimDueJobs(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to claim due jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		s.logger.Debug("no scheduled jobs due to run")
		return
	}

	s.logger.Info("found scheduled jobs to run", "count", len(jobs))

	for _, job := range jobs {
		s.logger.Info("executing scheduled job",
			"job_id", job.ID,
			"name", job.Name,
			"model", job.Model,
			"interval_minutes", job.ScheduleInterval,
		)

		report, err := s.runner.runJob(ctx, job)
		if err != nil {
			// Failures are already recorded on the run row where one was
			// created; the job stays scheduled for its next interval.
			s.logger.Error("scheduled job failed",
				"job_id", job.ID,
				"name", job.Name,
				"error", err,
			)
			continue
		}

		s.logger.Info("scheduled job completed",
			"job_id", job.ID,
			"name", job.Name,
			"run_id", report.RunID,
			"results", len(report.Results),
		)
	}
}
