package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/gridcast/gridcast/internal/models"
)

// RunRepository handles forecast run and result persistence.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a new run row.
func (r *RunRepository) CreateRun(ctx context.Context, run *models.ForecastRun) error {
	query := `
		INSERT INTO forecast_runs (id, model, regions, horizon_hours, scale_percent, status, sample_count, result_count, error_message, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Model, pq.Array(run.Regions), run.HorizonHours, run.ScalePercent,
		run.Status, run.SampleCount, run.ResultCount, run.ErrorMessage, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRun overwrites the mutable fields of a run row.
func (r *RunRepository) UpdateRun(ctx context.Context, run *models.ForecastRun) error {
	query := `
		UPDATE forecast_runs
		SET status = $1, r2 = $2, mape = $3, rmse = $4, mae = $5,
		    sample_count = $6, result_count = $7, error_message = $8, completed_at = $9
		WHERE id = $10
	`

	var r2, mape, rmse, mae sql.NullFloat64
	if run.Metrics != nil {
		r2 = sql.NullFloat64{Float64: run.Metrics.R2, Valid: true}
		mape = sql.NullFloat64{Float64: run.Metrics.MAPE, Valid: true}
		rmse = sql.NullFloat64{Float64: run.Metrics.RMSE, Valid: true}
		mae = sql.NullFloat64{Float64: run.Metrics.MAE, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		run.Status, r2, mape, rmse, mae,
		run.SampleCount, run.ResultCount, run.ErrorMessage, run.CompletedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// InsertResults stores all timesteps of a run in one transaction.
func (r *RunRepository) InsertResults(ctx context.Context, runID string, results []models.ForecastResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecast_results (run_id, timestamp, region, demand_mw, lag_tier, blended)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		if _, err := stmt.ExecContext(ctx, runID, res.Timestamp, res.Region, res.Demand, string(res.LagTier), res.Blended); err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil when not found.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.ForecastRun, error) {
	query := `
		SELECT id, model, regions, horizon_hours, scale_percent, status, r2, mape, rmse, mae,
		       sample_count, result_count, error_message, started_at, completed_at
		FROM forecast_runs
		WHERE id = $1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]models.ForecastRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, model, regions, horizon_hours, scale_percent, status, r2, mape, rmse, mae,
		       sample_count, result_count, error_message, started_at, completed_at
		FROM forecast_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ForecastRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListResults returns all timesteps of a run ordered by region and time.
func (r *RunRepository) ListResults(ctx context.Context, runID string) ([]models.ForecastResult, error) {
	query := `
		SELECT timestamp, region, demand_mw, lag_tier, blended
		FROM forecast_results
		WHERE run_id = $1
		ORDER BY region, timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// LatestForecasts returns the results of the most recent completed run,
// optionally filtered to a single region.
func (r *RunRepository) LatestForecasts(ctx context.Context, region string) ([]models.ForecastResult, error) {
	query := `
		SELECT res.timestamp, res.region, res.demand_mw, res.lag_tier, res.blended
		FROM forecast_results res
		JOIN (
			SELECT id FROM forecast_runs
			WHERE status = 'completed'
			ORDER BY started_at DESC
			LIMIT 1
		) latest ON res.run_id = latest.id
		WHERE $1 = '' OR res.region = $1
		ORDER BY res.region, res.timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, region)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest forecasts: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// DeleteRun removes a run and, via cascade, its results. Returns false
// when no run had the given ID.
func (r *RunRepository) DeleteRun(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM forecast_runs WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check delete result: %w", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.ForecastRun, error) {
	var run models.ForecastRun
	var r2, mape, rmse, mae sql.NullFloat64

	err := row.Scan(
		&run.ID, &run.Model, pq.Array(&run.Regions), &run.HorizonHours, &run.ScalePercent,
		&run.Status, &r2, &mape, &rmse, &mae,
		&run.SampleCount, &run.ResultCount, &run.ErrorMessage, &run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if r2.Valid {
		run.Metrics = &models.Metrics{R2: r2.Float64, MAPE: mape.Float64, RMSE: rmse.Float64, MAE: mae.Float64}
	}
	return &run, nil
}

func scanResults(rows *sql.Rows) ([]models.ForecastResult, error) {
	var results []models.ForecastResult
	for rows.Next() {
		var res models.ForecastResult
		var tier string
		if err := rows.Scan(&res.Timestamp, &res.Region, &res.Demand, &tier, &res.Blended); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.LagTier = models.FallbackTier(tier)
		results = append(results, res)
	}
	return results, rows.Err()
}
