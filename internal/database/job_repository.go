package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/gridcast/gridcast/internal/models"
)

// JobRepository stores scheduled forecast jobs.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, name, model, regions, horizon_hours, scale_percent, growth_percent,
	schedule_enabled, schedule_interval, last_run_at, next_run_at, created_at, updated_at`

// CreateJob inserts a new job. When the schedule is enabled the first run
// is due one interval from now.
func (r *JobRepository) CreateJob(ctx context.Context, req models.CreateJobRequest) (*models.ForecastJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var nextRunAt *time.Time
	if req.ScheduleEnabled && req.ScheduleInterval > 0 {
		next := now.Add(time.Duration(req.ScheduleInterval) * time.Minute)
		nextRunAt = &next
	}

	query := `
		INSERT INTO forecast_jobs (id, name, model, regions, horizon_hours, scale_percent, growth_percent, schedule_enabled, schedule_interval, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		id, req.Name, req.Model, pq.Array(req.Regions), req.HorizonHours,
		req.ScalePercent, req.GrowthPercent, req.ScheduleEnabled, req.ScheduleInterval,
		nextRunAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return r.GetJob(ctx, id)
}

// UpdateJob overwrites a job's definition, preserving its schedule state.
func (r *JobRepository) UpdateJob(ctx context.Context, id string, req models.CreateJobRequest) (*models.ForecastJob, error) {
	query := `
		UPDATE forecast_jobs
		SET name = $1, model = $2, regions = $3, horizon_hours = $4, scale_percent = $5, growth_percent = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		req.Name, req.Model, pq.Array(req.Regions), req.HorizonHours,
		req.ScalePercent, req.GrowthPercent, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.GetJob(ctx, id)
}

// SetSchedule enables or disables a job's schedule. Enabling resets the
// next due time to one interval from now.
func (r *JobRepository) SetSchedule(ctx context.Context, id string, enabled bool, intervalMinutes int) (*models.ForecastJob, error) {
	now := time.Now().UTC()

	var nextRunAt *time.Time
	if enabled && intervalMinutes > 0 {
		next := now.Add(time.Duration(intervalMinutes) * time.Minute)
		nextRunAt = &next
	}

	query := `
		UPDATE forecast_jobs
		SET schedule_enabled = $1, schedule_interval = $2, next_run_at = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, enabled, intervalMinutes, nextRunAt, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update job schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.GetJob(ctx, id)
}

// GetJob retrieves a job by ID. Returns nil when not found.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.ForecastJob, error) {
	query := `SELECT ` + jobColumns + ` FROM forecast_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns all jobs ordered by creation time.
func (r *JobRepository) ListJobs(ctx context.Context) ([]models.ForecastJob, error) {
	query := `SELECT ` + jobColumns + ` FROM forecast_jobs ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ForecastJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job. Returns false when no job had the given ID.
func (r *JobRepository) DeleteJob(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM forecast_jobs WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check delete result: %w", err)
	}
	return affected > 0, nil
}

// ClaimDueJobs atomically claims every enabled job whose next run time has
// passed, advancing the due time so concurrent schedulers cannot claim the
// same job twice.
func (r *JobRepository) ClaimDueJobs(ctx context.Context, now time.Time) ([]models.ForecastJob, error) {
	query := `
		UPDATE forecast_jobs
		SET last_run_at = $1,
		    next_run_at = $1 + schedule_interval * INTERVAL '1 minute',
		    updated_at = $1
		WHERE schedule_enabled AND schedule_interval > 0 AND next_run_at <= $1
		RETURNING ` + jobColumns

	rows, err := r.db.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ForecastJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*models.ForecastJob, error) {
	var job models.ForecastJob
	err := row.Scan(
		&job.ID, &job.Name, &job.Model, pq.Array(&job.Regions), &job.HorizonHours,
		&job.ScalePercent, &job.GrowthPercent, &job.ScheduleEnabled, &job.ScheduleInterval,
		&job.LastRunAt, &job.NextRunAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
