package forecaster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gridcast/gridcast/internal/features"
	"github.com/gridcast/gridcast/internal/history"
	"github.com/gridcast/gridcast/internal/metrics"
	"github.com/gridcast/gridcast/internal/models"
	"github.com/gridcast/gridcast/internal/predictor"
	"github.com/gridcast/gridcast/internal/training"
)

// RunRepository defines the persistence methods a service run needs.
type RunRepository interface {
	CreateRun(ctx context.Context, run *models.ForecastRun) error
	UpdateRun(ctx context.Context, run *models.ForecastRun) error
	InsertResults(ctx context.Context, runID string, results []models.ForecastResult) error
}

// SnapshotRepository stores serialized linear-model snapshots.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, regions []string, snap *models.LinearSnapshot) (string, error)
}

// Params are the per-run engine tunables.
type Params struct {
	Model         string  // linear | hybrid | boosted
	ScalePercent  float64 // final linear adjustment, e.g. 5 for +5%
	GrowthPercent float64 // hybrid envelope growth per day ahead
	BlendRatio    float64 // cold-start blending weight, in [0,1]
	TempTolerance float64 // similar-day temperature tolerance, °C
	Seed          int64   // boosted RNG seed
	MinSamples    int     // minimum training samples
}

func (p Params) validate() error {
	if p.Model == "" {
		return fmt.Errorf("model is required")
	}
	if p.BlendRatio < 0 || p.BlendRatio > 1 {
		return fmt.Errorf("blend ratio %v outside [0,1]", p.BlendRatio)
	}
	return nil
}

// RunInput is everything a run consumes: historical series, the forecast
// horizon, and the tunables.
type RunInput struct {
	// Merged is the time-aligned demand+weather history used for training
	// and index construction.
	Merged []models.HourlyRecord
	// Demand holds raw demand readings without weather alignment; they feed
	// the fallback chain but never become training samples.
	Demand []models.DemandRecord
	// Horizon is the weather series to forecast over, ordered by strictly
	// increasing timestamp per region.
	Horizon []models.WeatherRecord

	Params Params
}

// Service owns the end-to-end forecast run: index construction, sample
// building, training, the pipeline pass, and optional persistence. It is
// the one place the configured model name is turned into a concrete model.
type Service struct {
	calendar  *features.Calendar
	logger    *slog.Logger
	collector *metrics.EngineCollector // may be nil

	runs      RunRepository      // optional
	snapshots SnapshotRepository // optional
}

// NewService builds a service without persistence, for batch CLI runs.
func NewService(cal *features.Calendar, logger *slog.Logger, collector *metrics.EngineCollector) *Service {
	return &Service{calendar: cal, logger: logger, collector: collector}
}

// WithStores attaches run and snapshot persistence.
func (s *Service) WithStores(runs RunRepository, snapshots SnapshotRepository) *Service {
	s.runs = runs
	s.snapshots = snapshots
	return s
}

// importancer is implemented by models that report per-feature importance.
type importancer interface {
	Importance() map[string]float64
}

// snapshotter is implemented by models with a serializable representation.
type snapshotter interface {
	Snapshot() (*models.LinearSnapshot, error)
}

// positionFitter is implemented by models with a secondary position
// regression whose fit is worth surfacing.
type positionFitter interface {
	PositionR2() float64
}

// Run executes a full forecast run and returns its report. When a run store
// is attached the run row is created up front and finalized on both success
// and failure, so a crash mid-run leaves a visibly failed row rather than a
// phantom.
func (s *Service) Run(ctx context.Context, input RunInput) (*models.RunReport, error) {
	if err := input.Params.validate(); err != nil {
		return nil, fmt.Errorf("run params: %w", err)
	}
	if len(input.Merged) == 0 {
		return nil, fmt.Errorf("no historical records")
	}
	if len(input.Horizon) == 0 {
		return nil, fmt.Errorf("empty forecast horizon")
	}

	run := &models.ForecastRun{
		ID:           uuid.New().String(),
		Model:        input.Params.Model,
		Regions:      horizonRegions(input.Horizon),
		HorizonHours: len(input.Horizon),
		ScalePercent: input.Params.ScalePercent,
		Status:       models.RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	if s.runs != nil {
		if err := s.runs.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	report, err := s.execute(ctx, input, run)
	if err != nil {
		s.failRun(ctx, run, err)
		return nil, err
	}
	return report, nil
}

func (s *Service) execute(ctx context.Context, input RunInput, run *models.ForecastRun) (*models.RunReport, error) {
	start := time.Now()
	s.logger.Info("starting forecast run",
		"run_id", run.ID,
		"model", run.Model,
		"regions", run.Regions,
		"history_records", len(input.Merged),
		"horizon_hours", run.HorizonHours)

	builder := history.NewBuilder(s.calendar).WithTolerance(input.Params.TempTolerance)
	for _, rec := range input.Merged {
		builder.AddRecord(rec)
	}
	for _, rec := range input.Demand {
		builder.AddDemand(rec)
	}
	index := builder.Build()

	engineer := features.NewEngineer(s.calendar)
	samples, err := training.NewSampleBuilder(engineer, index).Build(input.Merged)
	if err != nil {
		return nil, fmt.Errorf("build samples: %w", err)
	}

	model, err := predictor.New(input.Params.Model, predictor.Options{
		MinSamples:    input.Params.MinSamples,
		GrowthPercent: input.Params.GrowthPercent,
		Seed:          input.Params.Seed,
	})
	if err != nil {
		return nil, err
	}

	trainStart := time.Now()
	trainMetrics, err := model.Train(samples)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", model.Name(), err)
	}
	s.collector.ObserveTraining(time.Since(trainStart), len(samples))
	s.logger.Info("model trained",
		"run_id", run.ID,
		"model", model.Name(),
		"samples", len(samples),
		"r2", trainMetrics.R2,
		"mape", trainMetrics.MAPE)

	pipeline := NewPipeline(engineer, index, model,
		input.Params.BlendRatio, input.Params.ScalePercent, s.logger, s.collector)
	results, err := pipeline.Run(ctx, input.Horizon)
	if err != nil {
		return nil, err
	}
	s.collector.ObservePipeline(time.Since(start))

	report := &models.RunReport{
		RunID:       run.ID,
		Model:       model.Name(),
		Metrics:     trainMetrics,
		SampleCount: len(samples),
		Results:     results,
		Duration:    time.Since(start),
	}
	if imp, ok := model.(importancer); ok {
		report.Importance = imp.Importance()
	}
	if fit, ok := model.(positionFitter); ok {
		report.PositionR2 = fit.PositionR2()
	}

	if err := s.persist(ctx, run, report, model); err != nil {
		return nil, err
	}

	s.logger.Info("forecast run completed",
		"run_id", run.ID,
		"results", len(results),
		"duration", report.Duration)
	return report, nil
}

func (s *Service) persist(ctx context.Context, run *models.ForecastRun, report *models.RunReport, model predictor.Model) error {
	if s.runs != nil {
		if err := s.runs.InsertResults(ctx, run.ID, report.Results); err != nil {
			return fmt.Errorf("store results: %w", err)
		}
		now := time.Now().UTC()
		run.Status = models.RunStatusCompleted
		run.Metrics = &report.Metrics
		run.SampleCount = report.SampleCount
		run.ResultCount = len(report.Results)
		run.CompletedAt = &now
		if err := s.runs.UpdateRun(ctx, run); err != nil {
			return fmt.Errorf("finalize run: %w", err)
		}
	}

	if s.snapshots != nil {
		if snap, ok := model.(snapshotter); ok {
			snapshot, err := snap.Snapshot()
			if err != nil {
				return fmt.Errorf("snapshot model: %w", err)
			}
			if _, err := s.snapshots.SaveSnapshot(ctx, run.Regions, snapshot); err != nil {
				return fmt.Errorf("store snapshot: %w", err)
			}
		}
	}
	return nil
}

func (s *Service) failRun(ctx context.Context, run *models.ForecastRun, cause error) {
	s.logger.Error("forecast run failed", "run_id", run.ID, "error", cause)
	if s.runs == nil {
		return
	}
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &now
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		s.logger.Error("failed to record run failure", "run_id", run.ID, "error", err)
	}
}

func horizonRegions(horizon []models.WeatherRecord) []string {
	seen := make(map[string]bool)
	var regions []string
	for _, rec := range horizon {
		if !seen[rec.Region] {
			seen[rec.Region] = true
			regions = append(regions, rec.Region)
		}
	}
	return regions
}
