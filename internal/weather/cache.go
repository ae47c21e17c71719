package weather

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gridcast/gridcast/internal/models"
)

// Cache is a local SQLite store of fetched weather observations keyed by
// (region, timestamp). It lets repeated CLI runs and the observation
// backfill job skip refetching hours they already hold.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database at path and initializes
// the schema.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	cache := &Cache{db: db}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return cache, nil
}

func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS weather_records (
		region TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		temperature REAL NOT NULL,
		dew_point REAL NOT NULL,
		precipitation REAL NOT NULL,
		wind_speed REAL NOT NULL,
		cloud_cover REAL NOT NULL,
		solar_radiation REAL NOT NULL,
		uv_index REAL NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (region, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_weather_timestamp ON weather_records(timestamp);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Put upserts the records. Refetched hours overwrite their previous values.
func (c *Cache) Put(records []models.WeatherRecord) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO weather_records (
			region, timestamp, temperature, dew_point, precipitation,
			wind_speed, cloud_cover, solar_radiation, uv_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare cache write: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		w := rec.Weather
		if _, err := stmt.Exec(
			rec.Region, rec.Timestamp.UTC(),
			w.Temperature, w.DewPoint, w.Precipitation,
			w.WindSpeed, w.CloudCover, w.SolarRadiation, w.UVIndex,
		); err != nil {
			return fmt.Errorf("store %s at %s: %w", rec.Region, rec.Timestamp, err)
		}
	}
	return tx.Commit()
}

// GetRange returns the cached records for region in [start, end), ordered by
// timestamp.
func (c *Cache) GetRange(region string, start, end time.Time) ([]models.WeatherRecord, error) {
	rows, err := c.db.Query(`
		SELECT timestamp, temperature, dew_point, precipitation,
		       wind_speed, cloud_cover, solar_radiation, uv_index
		FROM weather_records
		WHERE region = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`, region, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	var records []models.WeatherRecord
	for rows.Next() {
		var rec models.WeatherRecord
		rec.Region = region
		if err := rows.Scan(
			&rec.Timestamp,
			&rec.Weather.Temperature,
			&rec.Weather.DewPoint,
			&rec.Weather.Precipitation,
			&rec.Weather.WindSpeed,
			&rec.Weather.CloudCover,
			&rec.Weather.SolarRadiation,
			&rec.Weather.UVIndex,
		); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Cleanup removes rows fetched before the retention cutoff.
func (c *Cache) Cleanup(retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention)
	_, err := c.db.Exec(`DELETE FROM weather_records WHERE fetched_at < ?`, cutoff)
	return err
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
