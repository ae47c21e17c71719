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

// ModelRepository stores linear model snapshots so a trained model can be
// reused without retraining.
type ModelRepository struct {
	db *sql.DB
}

// NewModelRepository creates a new model repository.
func NewModelRepository(db *sql.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// SaveSnapshot stores a snapshot and returns its generated ID.
func (r *ModelRepository) SaveSnapshot(ctx context.Context, regions []string, snap *models.LinearSnapshot) (string, error) {
	if len(snap.FeatureNames) != len(snap.Coefficients) {
		return "", fmt.Errorf("snapshot arrays misaligned: %d names, %d coefficients", len(snap.FeatureNames), len(snap.Coefficients))
	}

	id := uuid.New().String()
	trainedAt := snap.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO model_snapshots (id, regions, feature_names, coefficients, trained_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, id, pq.Array(regions), pq.Array(snap.FeatureNames), pq.Array(snap.Coefficients), trainedAt)
	if err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recently trained snapshot, or nil when
// none has been stored.
func (r *ModelRepository) LatestSnapshot(ctx context.Context) (*models.LinearSnapshot, error) {
	query := `
		SELECT id, feature_names, coefficients, trained_at
		FROM model_snapshots
		ORDER BY trained_at DESC
		LIMIT 1
	`

	var snap models.LinearSnapshot
	err := r.db.QueryRowContext(ctx, query).Scan(&snap.ID, pq.Array(&snap.FeatureNames), pq.Array(&snap.Coefficients), &snap.TrainedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &snap, nil
}

// GetSnapshot retrieves a snapshot by ID. Returns nil when not found.
func (r *ModelRepository) GetSnapshot(ctx context.Context, id string) (*models.LinearSnapshot, error) {
	query := `
		SELECT id, feature_names, coefficients, trained_at
		FROM model_snapshots
		WHERE id = $1
	`

	var snap models.LinearSnapshot
	err := r.db.QueryRowContext(ctx, query, id).Scan(&snap.ID, pq.Array(&snap.FeatureNames), pq.Array(&snap.Coefficients), &snap.TrainedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns snapshot metadata ordered newest first.
func (r *ModelRepository) ListSnapshots(ctx context.Context, limit int) ([]models.LinearSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, feature_names, coefficients, trained_at
		FROM model_snapshots
		ORDER BY trained_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.LinearSnapshot
	for rows.Next() {
		var snap models.LinearSnapshot
		if err := rows.Scan(&snap.ID, pq.Array(&snap.FeatureNames), pq.Array(&snap.Coefficients), &snap.TrainedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
