package models

import "time"

// OptionalValue is a lag or rolling feature that may be unavailable.
// Absence is a first-class state resolved by the fallback chain, never an
// error; Valid mirrors the database/sql null convention.
type OptionalValue struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Some wraps a resolved value.
func Some(v float64) OptionalValue {
	return OptionalValue{Value: v, Valid: true}
}

// None is the absent value.
func None() OptionalValue {
	return OptionalValue{}
}

// Or returns the value when valid, otherwise the fallback.
func (o OptionalValue) Or(fallback float64) float64 {
	if o.Valid {
		return o.Value
	}
	return fallback
}

// LagFeatures holds the optional history-derived inputs of a feature vector.
type LagFeatures struct {
	Demand1h          OptionalValue `json:"demand_lag_1h"`
	Demand24h         OptionalValue `json:"demand_lag_24h"`
	Demand168h        OptionalValue `json:"demand_lag_168h"`
	Temperature1h     OptionalValue `json:"temperature_lag_1h"`
	Temperature24h    OptionalValue `json:"temperature_lag_24h"`
	DemandRollMean24h OptionalValue `json:"demand_roll_mean_24h"`
	TempRollMean24h   OptionalValue `json:"temperature_roll_mean_24h"`
	TempRollMax24h    OptionalValue `json:"temperature_roll_max_24h"`
}

// Complete reports whether every scalar lag resolved. Rolling aggregates are
// excluded: they average over whatever offsets resolved and are legitimately
// partial even in dense history.
func (l LagFeatures) Complete() bool {
	return l.Demand1h.Valid &&
		l.Demand24h.Valid &&
		l.Demand168h.Valid &&
		l.Temperature1h.Valid &&
		l.Temperature24h.Valid
}

// FeatureVector is the fixed-schema input every prediction model consumes.
// Field order and count are frozen: Vector and FeatureNames emit parallel
// positional arrays, and models address features by position, not name.
// Timestamp and Region are metadata and not part of the positional array.
type FeatureVector struct {
	Timestamp time.Time `json:"timestamp"`
	Region    string    `json:"region"`

	// Calendar
	Hour       float64 `json:"hour"`
	DayOfWeek  float64 `json:"day_of_week"` // Monday=1 .. Sunday=7
	IsWeekend  float64 `json:"is_weekend"`
	IsHoliday  float64 `json:"is_holiday"`
	DayOfMonth float64 `json:"day_of_month"`
	Month      float64 `json:"month"`

	// Cyclical hour encoding, angle = 2π·hour/24
	HourSin float64 `json:"hour_sin"`
	HourCos float64 `json:"hour_cos"`

	// Day-type one-hot
	IsWorkday  float64 `json:"is_workday"`
	IsSaturday float64 `json:"is_saturday"`
	IsSunday   float64 `json:"is_sunday"`

	// Hour-of-day one-hot indicators
	HourOneHot [24]float64 `json:"hour_one_hot"`

	// Hour × day-type interactions
	HourWorkday  float64 `json:"hour_x_workday"`
	HourSaturday float64 `json:"hour_x_saturday"`
	HourSunday   float64 `json:"hour_x_sunday"`

	// Raw weather
	Temperature    float64 `json:"temperature"`
	DewPoint       float64 `json:"dew_point"`
	Precipitation  float64 `json:"precipitation"`
	WindSpeed      float64 `json:"wind_speed"`
	CloudCover     float64 `json:"cloud_cover"`
	SolarRadiation float64 `json:"solar_radiation"`
	UVIndex        float64 `json:"uv_index"`

	// Derived weather
	RelativeHumidity   float64 `json:"relative_humidity"`
	HeatIndex          float64 `json:"heat_index"`
	CoolingDegreeHours float64 `json:"cooling_degree_hours"`
	EffectiveSolar     float64 `json:"effective_solar"`
	ApparentTemp       float64 `json:"apparent_temperature"`
	IsRaining          float64 `json:"is_raining"`
	TempDewSpread      float64 `json:"temp_dew_spread"`
	IsDaytime          float64 `json:"is_daytime"`

	Lags LagFeatures `json:"lags"`
}

// featureNames is the canonical positional schema. Keep in lockstep with
// Vector: both are consumed positionally by every model and by serialized
// coefficient snapshots.
var featureNames = []string{
	"hour",
	"day_of_week",
	"is_weekend",
	"is_holiday",
	"day_of_month",
	"month",
	"hour_sin",
	"hour_cos",
	"is_workday",
	"is_saturday",
	"is_sunday",
	"hour_00", "hour_01", "hour_02", "hour_03", "hour_04", "hour_05",
	"hour_06", "hour_07", "hour_08", "hour_09", "hour_10", "hour_11",
	"hour_12", "hour_13", "hour_14", "hour_15", "hour_16", "hour_17",
	"hour_18", "hour_19", "hour_20", "hour_21", "hour_22", "hour_23",
	"hour_x_workday",
	"hour_x_saturday",
	"hour_x_sunday",
	"temperature",
	"dew_point",
	"precipitation",
	"wind_speed",
	"cloud_cover",
	"solar_radiation",
	"uv_index",
	"relative_humidity",
	"heat_index",
	"cooling_degree_hours",
	"effective_solar",
	"apparent_temperature",
	"is_raining",
	"temp_dew_spread",
	"is_daytime",
	"demand_lag_1h",
	"demand_lag_24h",
	"demand_lag_168h",
	"temperature_lag_1h",
	"temperature_lag_24h",
	"demand_roll_mean_24h",
	"temperature_roll_mean_24h",
	"temperature_roll_max_24h",
}

// FeatureCount is the length of the positional array.
var FeatureCount = len(featureNames)

// FeatureNames returns a copy of the positional schema.
func FeatureNames() []string {
	names := make([]string, len(featureNames))
	copy(names, featureNames)
	return names
}

// Vector flattens the feature vector into the positional numeric array.
// Absent optional features are substituted with 0 at this boundary.
func (f FeatureVector) Vector() []float64 {
	out := make([]float64, 0, FeatureCount)
	out = append(out,
		f.Hour,
		f.DayOfWeek,
		f.IsWeekend,
		f.IsHoliday,
		f.DayOfMonth,
		f.Month,
		f.HourSin,
		f.HourCos,
		f.IsWorkday,
		f.IsSaturday,
		f.IsSunday,
	)
	out = append(out, f.HourOneHot[:]...)
	out = append(out,
		f.HourWorkday,
		f.HourSaturday,
		f.HourSunday,
		f.Temperature,
		f.DewPoint,
		f.Precipitation,
		f.WindSpeed,
		f.CloudCover,
		f.SolarRadiation,
		f.UVIndex,
		f.RelativeHumidity,
		f.HeatIndex,
		f.CoolingDegreeHours,
		f.EffectiveSolar,
		f.ApparentTemp,
		f.IsRaining,
		f.TempDewSpread,
		f.IsDaytime,
		f.Lags.Demand1h.Or(0),
		f.Lags.Demand24h.Or(0),
		f.Lags.Demand168h.Or(0),
		f.Lags.Temperature1h.Or(0),
		f.Lags.Temperature24h.Or(0),
		f.Lags.DemandRollMean24h.Or(0),
		f.Lags.TempRollMean24h.Or(0),
		f.Lags.TempRollMax24h.Or(0),
	)
	return out
}
