package forecaster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gridcast/gridcast/internal/features"
	"github.com/gridcast/gridcast/internal/history"
	"github.com/gridcast/gridcast/internal/metrics"
	"github.com/gridcast/gridcast/internal/models"
	"github.com/gridcast/gridcast/internal/predictor"
)

// DefaultBlendRatio is the weight of the similar-days estimate when
// cold-start blending engages.
const DefaultBlendRatio = 0.5

// Pipeline walks a weather horizon one timestep at a time: resolve lags
// against the growing index, derive features, predict, blend on cold starts,
// scale, and feed the result back as lag history. The horizon must be
// ordered by strictly increasing timestamp within each region; AppendForecast
// rejects anything else.
type Pipeline struct {
	engineer *features.Engineer
	index    *history.Index
	model    predictor.Model

	blendRatio   float64
	scaleFactor  float64
	logger       *slog.Logger
	engineTotals *metrics.EngineCollector
}

// NewPipeline wires a pipeline over an already-built index and trained model.
// scalePercent is the final linear adjustment, e.g. 5 for +5%. The collector
// may be nil.
func NewPipeline(engineer *features.Engineer, index *history.Index, model predictor.Model,
	blendRatio, scalePercent float64, logger *slog.Logger, collector *metrics.EngineCollector) *Pipeline {
	return &Pipeline{
		engineer:     engineer,
		index:        index,
		model:        model,
		blendRatio:   blendRatio,
		scaleFactor:  1 + scalePercent/100,
		logger:       logger,
		engineTotals: collector,
	}
}

// Run processes the horizon in order and returns one result per record.
// Cancellation is checked between timesteps; a written forecast is immutable
// within the run, so a canceled run returns only the error.
func (p *Pipeline) Run(ctx context.Context, horizon []models.WeatherRecord) ([]models.ForecastResult, error) {
	results := make([]models.ForecastResult, 0, len(horizon))

	for _, rec := range horizon {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.step(rec)
		if err != nil {
			return nil, fmt.Errorf("forecast %s at %s: %w",
				rec.Region, rec.Timestamp.UTC().Format("2006-01-02T15:04"), err)
		}
		results = append(results, result)
	}

	return results, nil
}

func (p *Pipeline) step(rec models.WeatherRecord) (models.ForecastResult, error) {
	lagCtx := p.index.ResolveLags(rec.Region, rec.Timestamp, rec.Weather.Temperature)
	p.observeFallbacks(lagCtx)

	fv := p.engineer.Derive(rec, lagCtx.Lags)

	demand, err := p.model.Predict(fv, rec.Region)
	if err != nil {
		return models.ForecastResult{}, err
	}

	// Cold-start blending: with no exact 1h lag the model is running on
	// estimated history, so pull the prediction toward what similar days
	// actually did.
	blended := false
	if lagCtx.Demand1h != models.TierExact {
		if est, ok := p.index.SimilarDaysEstimate(rec.Region, rec.Timestamp, rec.Weather.Temperature); ok {
			demand = p.blendRatio*est + (1-p.blendRatio)*demand
			blended = true
		}
	}

	if demand < 0 {
		demand = 0
	}

	// The write-back carries the unscaled value: the scale factor is an
	// output adjustment, not history, and feeding it back would compound
	// it through the lag features.
	if err := p.index.AppendForecast(rec.Region, rec.Timestamp, demand); err != nil {
		return models.ForecastResult{}, err
	}
	demand *= p.scaleFactor
	if demand < 0 {
		demand = 0
	}

	p.engineTotals.ObserveForecast(rec.Region, p.model.Name())
	p.logger.Debug("forecast step",
		"region", rec.Region,
		"timestamp", rec.Timestamp,
		"demand", demand,
		"lag_tier", lagCtx.Demand1h,
		"blended", blended)

	return models.ForecastResult{
		Timestamp: rec.Timestamp,
		Region:    rec.Region,
		Demand:    demand,
		LagTier:   lagCtx.Demand1h,
		Blended:   blended,
	}, nil
}

func (p *Pipeline) observeFallbacks(lagCtx history.LagContext) {
	if p.engineTotals == nil {
		return
	}
	p.engineTotals.ObserveFallback("demand_1h", lagCtx.Demand1h)
	p.engineTotals.ObserveFallback("demand_24h", lagCtx.Demand24h)
	p.engineTotals.ObserveFallback("demand_168h", lagCtx.Demand168h)
	p.engineTotals.ObserveFallback("temperature_1h", lagCtx.Temp1h)
	p.engineTotals.ObserveFallback("temperature_24h", lagCtx.Temp24h)
}
