package scheduler

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/features"
	"github.com/gridcast/gridcast/internal/forecaster"
	"github.com/gridcast/gridcast/internal/models"
	"github.com/gridcast/gridcast/internal/weather"
)

// Two years of history covers every lag the feature schema reaches back
// for, including the year-ago similar-day window.
const defaultLookback = 2 * 365 * 24 * time.Hour

// Runner assembles a forecast run from stored observations and fetched
// weather, then executes it through the forecast service. It backs both
// the admin trigger endpoint and the job scheduler.
type Runner struct {
	obsRepo  *database.ObservationRepository
	weather  *weather.Client
	service  *forecaster.Service
	calendar *features.Calendar
	defaults config.EngineConfig
	lookback time.Duration
	logger   *slog.Logger
}

// NewRunner creates a new runner.
func NewRunner(
	obsRepo *database.ObservationRepository,
	weatherClient *weather.Client,
	service *forecaster.Service,
	calendar *features.Calendar,
	defaults config.EngineConfig,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		obsRepo:  obsRepo,
		weather:  weatherClient,
		service:  service,
		calendar: calendar,
		defaults: defaults,
		lookback: defaultLookback,
		logger:   logger,
	}
}

// Trigger executes one forecast run synchronously.
func (r *Runner) Trigger(ctx context.Context, req models.TriggerRunRequest) (*models.RunReport, error) {
	regions, err := r.resolveRegions(req.Regions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Hour)
	start := now.Add(-r.lookback)

	var merged []models.HourlyRecord
	var demand []models.DemandRecord
	for _, region := range regions {
		m, err := r.obsRepo.MergedRange(ctx, region.Name, start, now)
		if err != nil {
			return nil, fmt.Errorf("load history for %s: %w", region.Name, err)
		}
		d, err := r.obsRepo.DemandRange(ctx, region.Name, start, now)
		if err != nil {
			return nil, fmt.Errorf("load demand for %s: %w", region.Name, err)
		}
		merged = append(merged, m...)
		demand = append(demand, d...)
	}

	var horizon []models.WeatherRecord
	for _, region := range regions {
		series, err := r.weather.FetchHorizon(ctx, region.Name, region.Latitude, region.Longitude, req.HorizonHours)
		if err != nil {
			return nil, fmt.Errorf("fetch weather horizon for %s: %w", region.Name, err)
		}
		horizon = append(horizon, series...)
	}

	input := forecaster.RunInput{
		Merged:  merged,
		Demand:  demand,
		Horizon: horizon,
		Params: forecaster.Params{
			Model:         req.Model,
			ScalePercent:  req.ScalePercent,
			GrowthPercent: req.GrowthPercent,
			BlendRatio:    r.defaults.BlendRatio,
			TempTolerance: r.defaults.TempTolerance,
			Seed:          r.defaults.ModelSeed,
			MinSamples:    r.defaults.MinTrainingSamples,
		},
	}

	return r.service.Run(ctx, input)
}

// runJob executes a claimed scheduled job.
func (r *Runner) runJob(ctx context.Context, job models.ForecastJob) (*models.RunReport, error) {
	return r.Trigger(ctx, models.TriggerRunRequest{
		Model:         job.Model,
		Regions:       job.Regions,
		HorizonHours:  job.HorizonHours,
		ScalePercent:  job.ScalePercent,
		GrowthPercent: job.GrowthPercent,
	})
}

// resolveRegions maps requested region names onto calendar entries, which
// carry the coordinates the weather fetch needs. An empty request selects
// every configured region.
func (r *Runner) resolveRegions(names []string) ([]features.Region, error) {
	configured := r.calendar.Regions()
	if len(configured) == 0 {
		return nil, fmt.Errorf("no regions configured")
	}

	if len(names) == 0 {
		return configured, nil
	}

	byName := make(map[string]features.Region, len(configured))
	for _, region := range configured {
		byName[region.Name] = region
	}

	regions := make([]features.Region, 0, len(names))
	for _, name := range names {
		region, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown region %q", name)
		}
		regions = append(regions, region)
	}
	return regions, nil
}
