package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

// ObservationRepository stores hourly demand and weather observations, the
// raw history that training and lag resolution read from.
type ObservationRepository struct {
	db *sql.DB
}

// NewObservationRepository creates a new observation repository.
func NewObservationRepository(db *sql.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// UpsertDemand writes demand observations in one transaction. Existing
// rows for the same region and hour are overwritten.
func (r *ObservationRepository) UpsertDemand(ctx context.Context, records []models.DemandRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO demand_observations (region, timestamp, demand_mw)
		VALUES ($1, $2, $3)
		ON CONFLICT (region, timestamp) DO UPDATE SET demand_mw = EXCLUDED.demand_mw
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare demand insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Region, rec.Timestamp, rec.Demand); err != nil {
			return fmt.Errorf("failed to insert demand observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit demand observations: %w", err)
	}
	return nil
}

// UpsertWeather writes weather observations in one transaction.
func (r *ObservationRepository) UpsertWeather(ctx context.Context, records []models.WeatherRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO weather_observations (region, timestamp, temperature, dew_point, precipitation, wind_speed, cloud_cover, solar_radiation, uv_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (region, timestamp) DO UPDATE SET
			temperature = EXCLUDED.temperature,
			dew_point = EXCLUDED.dew_point,
			precipitation = EXCLUDED.precipitation,
			wind_speed = EXCLUDED.wind_speed,
			cloud_cover = EXCLUDED.cloud_cover,
			solar_radiation = EXCLUDED.solar_radiation,
			uv_index = EXCLUDED.uv_index
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare weather insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		w := rec.Weather
		if _, err := stmt.ExecContext(ctx, rec.Region, rec.Timestamp,
			w.Temperature, w.DewPoint, w.Precipitation, w.WindSpeed, w.CloudCover, w.SolarRadiation, w.UVIndex); err != nil {
			return fmt.Errorf("failed to insert weather observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit weather observations: %w", err)
	}
	return nil
}

// DemandRange returns demand observations in [start, end) ordered by
// region and time. An empty region selects all regions.
func (r *ObservationRepository) DemandRange(ctx context.Context, region string, start, end time.Time) ([]models.DemandRecord, error) {
	query := `
		SELECT region, timestamp, demand_mw
		FROM demand_observations
		WHERE ($1 = '' OR region = $1) AND timestamp >= $2 AND timestamp < $3
		ORDER BY region, timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, region, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query demand range: %w", err)
	}
	defer rows.Close()

	var records []models.DemandRecord
	for rows.Next() {
		var rec models.DemandRecord
		if err := rows.Scan(&rec.Region, &rec.Timestamp, &rec.Demand); err != nil {
			return nil, fmt.Errorf("failed to scan demand observation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MergedRange returns hours that have both a demand and a weather
// observation, the rows training samples are built from.
func (r *ObservationRepository) MergedRange(ctx context.Context, region string, start, end time.Time) ([]models.HourlyRecord, error) {
	query := `
		SELECT d.region, d.timestamp, d.demand_mw,
		       w.temperature, w.dew_point, w.precipitation, w.wind_speed, w.cloud_cover, w.solar_radiation, w.uv_index
		FROM demand_observations d
		JOIN weather_observations w ON w.region = d.region AND w.timestamp = d.timestamp
		WHERE ($1 = '' OR d.region = $1) AND d.timestamp >= $2 AND d.timestamp < $3
		ORDER BY d.region, d.timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, region, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query merged range: %w", err)
	}
	defer rows.Close()

	var records []models.HourlyRecord
	for rows.Next() {
		var rec models.HourlyRecord
		w := &rec.Weather
		if err := rows.Scan(&rec.Region, &rec.Timestamp, &rec.Demand,
			&w.Temperature, &w.DewPoint, &w.Precipitation, &w.WindSpeed, &w.CloudCover, &w.SolarRadiation, &w.UVIndex); err != nil {
			return nil, fmt.Errorf("failed to scan merged observation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
