package predictor

import (
	"fmt"
	"sort"
	"time"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/stat"

	"github.com/gridcast/gridcast/internal/models"
)

// recentObsCount is the number of raw observations a profile retains for
// dynamic re-bounding of the temperature deviation feature.
const recentObsCount = 30

// positionFeatureNames is the reduced, normalized feature set the position
// regression is trained on. Lags enter as ratios to the profile median so
// the feature scale stays bounded as forecasts feed back on themselves;
// absolute lag features would compound errors multiplicatively instead.
var positionFeatureNames = []string{
	"hour_sin",
	"hour_cos",
	"is_holiday",
	"is_weekend",
	"temp_delta",
	"demand_ratio_1h",
	"demand_ratio_24h",
	"demand_ratio_168h",
}

type profileKey struct {
	region  string
	hour    int
	dayType models.DayType
}

type observation struct {
	unix        int64
	demand      float64
	temperature float64
}

// StatisticalProfile captures the historical demand envelope for one
// (region, hour, day-type) slot. Min/Median/Max are the 5th/50th/95th
// percentiles; extremes are deliberately trimmed so a single spike cannot
// stretch the interpolation range.
type StatisticalProfile struct {
	Min    float64
	Median float64
	Max    float64

	recent         []observation
	recentMeanTemp float64
}

// Degenerate reports whether the profile has no interpolation range.
func (p *StatisticalProfile) Degenerate() bool {
	return p.Max <= p.Min
}

// Hybrid interpolates demand within per-slot statistical envelopes. A
// secondary regression predicts the position inside the envelope rather
// than demand itself, and the position is clamped to [0,1]: the model never
// extrapolates beyond the bounds history has shown.
type Hybrid struct {
	minSamples    int
	growthPercent float64

	profiles   map[profileKey]*StatisticalProfile
	reg        *regression.Regression
	activeIdx  []int // position-feature columns with variance in training
	hasReg     bool
	lastSample time.Time
	trained    bool
}

// NewHybrid constructs an untrained hybrid model. growthPercent is the
// optional per-day growth applied to profile bounds at prediction time.
func NewHybrid(minSamples int, growthPercent float64) *Hybrid {
	return &Hybrid{minSamples: minSamples, growthPercent: growthPercent}
}

// Name implements Model.
func (h *Hybrid) Name() string { return ModelHybrid }

// Train builds the per-slot profiles and fits the position regression.
func (h *Hybrid) Train(samples []models.TrainingSample) (models.Metrics, error) {
	if err := checkSampleCount(len(samples), h.minSamples); err != nil {
		return models.Metrics{}, fmt.Errorf("hybrid: %w", err)
	}

	h.profiles = h.buildProfiles(samples)
	h.lastSample = time.Time{}
	for _, s := range samples {
		if s.Timestamp.After(h.lastSample) {
			h.lastSample = s.Timestamp
		}
	}

	// Position targets only exist where the envelope has width; a region of
	// perfectly flat history trains no regression and predicts medians.
	var targets []float64
	var rows [][]float64
	for _, s := range samples {
		profile := h.profiles[keyForVector(s.Features)]
		if profile == nil || profile.Degenerate() {
			continue
		}
		pos := clamp01((s.Demand - profile.Min) / (profile.Max - profile.Min))
		targets = append(targets, pos)
		rows = append(rows, positionFeatures(s.Features, profile))
	}

	h.reg = nil
	h.hasReg = false
	// Constant columns (a training window with no holidays, say) would
	// make the solve singular; only columns that vary enter the fit.
	h.activeIdx = nil
	if len(rows) > 0 {
		h.activeIdx = varyingColumns(rows)
	}
	if len(h.activeIdx) > 0 {
		reg := new(regression.Regression)
		reg.SetObserved("position")
		for i, col := range h.activeIdx {
			reg.SetVar(i, positionFeatureNames[col])
		}
		for i, row := range rows {
			reg.Train(regression.DataPoint(targets[i], filterColumns(row, h.activeIdx)))
		}
		if err := reg.Run(); err != nil {
			return models.Metrics{}, fmt.Errorf("hybrid: position regression: %w", err)
		}
		h.reg = reg
		h.hasReg = true
	}
	h.trained = true

	actual := make([]float64, len(samples))
	predicted := make([]float64, len(samples))
	for i, s := range samples {
		p, err := h.Predict(s.Features, s.Region)
		if err != nil {
			return models.Metrics{}, err
		}
		actual[i] = s.Demand
		predicted[i] = p
	}
	return evaluate(actual, predicted), nil
}

// Predict interpolates within the slot's (optionally grown) envelope.
// A missing profile is an error: this slot was never seen in training and
// silently borrowing another slot's envelope would hide the gap.
func (h *Hybrid) Predict(fv models.FeatureVector, region string) (float64, error) {
	if !h.trained {
		return 0, fmt.Errorf("hybrid: %w", ErrNotTrained)
	}

	key := profileKey{region: region, hour: int(fv.Hour), dayType: dayTypeOfVector(fv)}
	profile := h.profiles[key]
	if profile == nil {
		return 0, fmt.Errorf("hybrid: no profile for region %s hour %d day-type %s",
			region, key.hour, key.dayType)
	}

	growth := 1.0
	if h.growthPercent != 0 {
		if days := daysAhead(h.lastSample, fv.Timestamp); days > 0 {
			growth = 1 + h.growthPercent/100*float64(days)
		}
	}
	min := profile.Min * growth
	max := profile.Max * growth
	median := profile.Median * growth

	if profile.Degenerate() || !h.hasReg {
		if median < 0 {
			median = 0
		}
		return median, nil
	}

	pos, err := h.reg.Predict(filterColumns(positionFeatures(fv, profile), h.activeIdx))
	if err != nil {
		return 0, fmt.Errorf("hybrid: position predict: %w", err)
	}
	demand := min + clamp01(pos)*(max-min)
	if demand < 0 {
		demand = 0
	}
	return demand, nil
}

// Profile exposes the envelope for a slot, used by tests and diagnostics.
func (h *Hybrid) Profile(region string, hour int, dayType models.DayType) *StatisticalProfile {
	return h.profiles[profileKey{region: region, hour: hour, dayType: dayType}]
}

// PositionR2 reports the fit of the secondary regression, zero when no
// position targets existed.
func (h *Hybrid) PositionR2() float64 {
	if !h.hasReg {
		return 0
	}
	return h.reg.R2
}

func (h *Hybrid) buildProfiles(samples []models.TrainingSample) map[profileKey]*StatisticalProfile {
	demands := make(map[profileKey][]float64)
	obs := make(map[profileKey][]observation)
	for _, s := range samples {
		key := keyForVector(s.Features)
		demands[key] = append(demands[key], s.Demand)
		obs[key] = append(obs[key], observation{
			unix:        s.Timestamp.Unix(),
			demand:      s.Demand,
			temperature: s.Features.Temperature,
		})
	}

	profiles := make(map[profileKey]*StatisticalProfile, len(demands))
	for key, values := range demands {
		sort.Float64s(values)
		p := &StatisticalProfile{
			Min:    stat.Quantile(0.05, stat.Empirical, values, nil),
			Median: stat.Quantile(0.50, stat.Empirical, values, nil),
			Max:    stat.Quantile(0.95, stat.Empirical, values, nil),
		}

		recent := obs[key]
		sort.Slice(recent, func(i, j int) bool { return recent[i].unix > recent[j].unix })
		if len(recent) > recentObsCount {
			recent = recent[:recentObsCount]
		}
		p.recent = recent
		var tempSum float64
		for _, o := range recent {
			tempSum += o.temperature
		}
		if len(recent) > 0 {
			p.recentMeanTemp = tempSum / float64(len(recent))
		}

		profiles[key] = p
	}
	return profiles
}

// positionFeatures builds the normalized feature slice for one vector
// against its profile.
func positionFeatures(fv models.FeatureVector, profile *StatisticalProfile) []float64 {
	median := profile.Median
	ratio := func(lag models.OptionalValue) float64 {
		if !lag.Valid || median == 0 {
			return 1
		}
		return lag.Value / median
	}
	return []float64{
		fv.HourSin,
		fv.HourCos,
		fv.IsHoliday,
		fv.IsWeekend,
		fv.Temperature - profile.recentMeanTemp,
		ratio(fv.Lags.Demand1h),
		ratio(fv.Lags.Demand24h),
		ratio(fv.Lags.Demand168h),
	}
}

func keyForVector(fv models.FeatureVector) profileKey {
	return profileKey{region: fv.Region, hour: int(fv.Hour), dayType: dayTypeOfVector(fv)}
}

// dayTypeOfVector recovers the day-type from the vector's one-hot flags so
// prediction never re-derives calendar rules the engineer already applied.
func dayTypeOfVector(fv models.FeatureVector) models.DayType {
	switch {
	case fv.IsSaturday == 1:
		return models.DaySaturday
	case fv.IsSunday == 1:
		return models.DaySunday
	default:
		return models.DayWorkday
	}
}

// daysAhead counts whole days between the end of training data and the
// forecast timestep, floored at zero.
func daysAhead(lastSample, ts time.Time) int {
	if !ts.After(lastSample) {
		return 0
	}
	return int(ts.Sub(lastSample).Hours() / 24)
}

// varyingColumns returns the indices of columns that take more than one
// value across the rows.
func varyingColumns(rows [][]float64) []int {
	var active []int
	for col := range rows[0] {
		first := rows[0][col]
		for _, row := range rows[1:] {
			if row[col] != first {
				active = append(active, col)
				break
			}
		}
	}
	return active
}

func filterColumns(row []float64, active []int) []float64 {
	out := make([]float64, len(active))
	for i, col := range active {
		out[i] = row[col]
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
