package training

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gridcast/gridcast/internal/features"
	"github.com/gridcast/gridcast/internal/history"
	"github.com/gridcast/gridcast/internal/models"
)

// ErrNoSamples is returned when every record of the merged series was
// filtered out for insufficient lag coverage.
var ErrNoSamples = errors.New("no training samples after lag filtering")

// SampleBuilder converts a merged historical series into training samples.
// Lag features are resolved against the historical index at tier 1 only:
// a record whose scalar lags cannot all be matched exactly is dropped
// unless partial-lag inclusion was requested.
type SampleBuilder struct {
	engineer       *features.Engineer
	index          *history.Index
	includePartial bool
}

// NewSampleBuilder wires the feature engineer and historical index the
// builder derives samples from.
func NewSampleBuilder(eng *features.Engineer, idx *history.Index) *SampleBuilder {
	return &SampleBuilder{engineer: eng, index: idx}
}

// IncludePartial keeps records whose scalar lags only partially resolved.
// Useful when history is too short for a full 168h lag window.
func (b *SampleBuilder) IncludePartial() *SampleBuilder {
	b.includePartial = true
	return b
}

// Build derives one sample per merged record with sufficient lag coverage,
// ordered by (region, timestamp). It fails when filtering leaves nothing to
// train on.
func (b *SampleBuilder) Build(series []models.HourlyRecord) ([]models.TrainingSample, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("build samples: empty historical series")
	}

	samples := make([]models.TrainingSample, 0, len(series))
	dropped := 0
	for _, rec := range series {
		lags := b.index.ExactLags(rec.Region, rec.Timestamp)
		if !lags.Complete() && !b.includePartial {
			dropped++
			continue
		}

		fv := b.engineer.Derive(models.WeatherRecord{
			Timestamp: rec.Timestamp,
			Region:    rec.Region,
			Weather:   rec.Weather,
		}, lags)

		samples = append(samples, models.TrainingSample{
			Timestamp: rec.Timestamp,
			Region:    rec.Region,
			Demand:    rec.Demand,
			Features:  fv,
		})
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %d records, all dropped", ErrNoSamples, dropped)
	}

	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Region != samples[j].Region {
			return samples[i].Region < samples[j].Region
		}
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	return samples, nil
}
