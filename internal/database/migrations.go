package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type migration struct {
	version string
	sql     string
}

// Migrations are embedded in the binary and applied in order, each inside
// its own transaction. The schema_migrations table records what has run.
var migrations = []migration{
	{
		version: "001_forecast_runs",
		sql: `
CREATE TABLE IF NOT EXISTS forecast_runs (
	id UUID PRIMARY KEY,
	model TEXT NOT NULL,
	regions TEXT[] NOT NULL DEFAULT '{}',
	horizon_hours INTEGER NOT NULL,
	scale_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	r2 DOUBLE PRECISION,
	mape DOUBLE PRECISION,
	rmse DOUBLE PRECISION,
	mae DOUBLE PRECISION,
	sample_count INTEGER NOT NULL DEFAULT 0,
	result_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_forecast_runs_started_at ON forecast_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS forecast_results (
	run_id UUID NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	region TEXT NOT NULL,
	demand_mw DOUBLE PRECISION NOT NULL,
	lag_tier TEXT NOT NULL,
	blended BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (run_id, region, timestamp)
);

CREATE INDEX IF NOT EXISTS idx_forecast_results_region_ts ON forecast_results (region, timestamp);
`,
	},
	{
		version: "002_model_snapshots",
		sql: `
CREATE TABLE IF NOT EXISTS model_snapshots (
	id UUID PRIMARY KEY,
	regions TEXT[] NOT NULL DEFAULT '{}',
	feature_names TEXT[] NOT NULL,
	coefficients DOUBLE PRECISION[] NOT NULL,
	trained_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_model_snapshots_trained_at ON model_snapshots (trained_at DESC);
`,
	},
	{
		version: "003_observations",
		sql: `
CREATE TABLE IF NOT EXISTS demand_observations (
	region TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	demand_mw DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (region, timestamp)
);

CREATE TABLE IF NOT EXISTS weather_observations (
	region TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	dew_point DOUBLE PRECISION NOT NULL,
	precipitation DOUBLE PRECISION NOT NULL,
	wind_speed DOUBLE PRECISION NOT NULL,
	cloud_cover DOUBLE PRECISION NOT NULL,
	solar_radiation DOUBLE PRECISION NOT NULL,
	uv_index DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (region, timestamp)
);
`,
	},
	{
		version: "004_forecast_jobs",
		sql: `
CREATE TABLE IF NOT EXISTS forecast_jobs (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	model TEXT NOT NULL,
	regions TEXT[] NOT NULL DEFAULT '{}',
	horizon_hours INTEGER NOT NULL,
	scale_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
	growth_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
	schedule_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	schedule_interval INTEGER NOT NULL DEFAULT 0,
	last_run_at TIMESTAMPTZ,
	next_run_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forecast_jobs_next_run ON forecast_jobs (next_run_at) WHERE schedule_enabled;
`,
	},
}

// RunMigrations applies all pending migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	logger.Info("checking for pending database migrations")

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pendingCount := 0
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		pendingCount++
		logger.Info("applying migration", "version", m.version)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.version, err)
		}
	}

	if pendingCount == 0 {
		logger.Info("no pending migrations found")
	} else {
		logger.Info("migrations completed", "count", pendingCount)
	}

	return nil
}
