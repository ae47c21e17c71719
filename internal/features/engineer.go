package features

import (
	"math"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

// DefaultBaseTemp is the balance-point temperature (°C) above which cooling
// load accumulates.
const DefaultBaseTemp = 18.3

// Magnus approximation constants (Magnus-Tetens, over water).
const (
	magnusA = 17.625
	magnusB = 243.04
)

// heatIndexThreshold is the temperature (°C) below which the heat index is
// the temperature itself; the Rothfusz polynomial only holds above it.
const heatIndexThreshold = 27.0

// Engineer derives the fixed-schema feature vector from a weather record and
// resolved lag context. Derivation is deterministic: the only state is the
// holiday calendar and the cooling base temperature chosen at construction.
type Engineer struct {
	calendar *Calendar
	baseTemp float64
}

// NewEngineer builds an engineer on the given calendar with the default
// cooling base temperature.
func NewEngineer(cal *Calendar) *Engineer {
	return &Engineer{calendar: cal, baseTemp: DefaultBaseTemp}
}

// NewEngineerWithBase overrides the cooling base temperature.
func NewEngineerWithBase(cal *Calendar, baseTemp float64) *Engineer {
	return &Engineer{calendar: cal, baseTemp: baseTemp}
}

// Derive computes the feature vector for one timestep. Weather scalars are
// assumed present and finite (validated upstream); missing lag inputs pass
// through as absent optionals.
func (e *Engineer) Derive(rec models.WeatherRecord, lags models.LagFeatures) models.FeatureVector {
	ts := rec.Timestamp
	w := rec.Weather
	hour := ts.Hour()
	dayType := e.calendar.DayTypeOf(ts)

	fv := models.FeatureVector{
		Timestamp:  ts,
		Region:     rec.Region,
		Hour:       float64(hour),
		DayOfWeek:  float64(isoWeekday(ts)),
		DayOfMonth: float64(ts.Day()),
		Month:      float64(int(ts.Month())),
		Lags:       lags,
	}

	if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
		fv.IsWeekend = 1
	}
	if e.calendar.IsHoliday(ts) {
		fv.IsHoliday = 1
	}

	angle := 2 * math.Pi * float64(hour) / 24
	fv.HourSin = math.Sin(angle)
	fv.HourCos = math.Cos(angle)

	switch dayType {
	case models.DayWorkday:
		fv.IsWorkday = 1
		fv.HourWorkday = float64(hour)
	case models.DaySaturday:
		fv.IsSaturday = 1
		fv.HourSaturday = float64(hour)
	case models.DaySunday:
		fv.IsSunday = 1
		fv.HourSunday = float64(hour)
	}

	fv.HourOneHot[hour] = 1

	fv.Temperature = w.Temperature
	fv.DewPoint = w.DewPoint
	fv.Precipitation = w.Precipitation
	fv.WindSpeed = w.WindSpeed
	fv.CloudCover = w.CloudCover
	fv.SolarRadiation = w.SolarRadiation
	fv.UVIndex = w.UVIndex

	fv.RelativeHumidity = RelativeHumidity(w.Temperature, w.DewPoint)
	fv.HeatIndex = HeatIndex(w.Temperature, fv.RelativeHumidity)
	fv.CoolingDegreeHours = math.Max(0, w.Temperature-e.baseTemp)
	fv.EffectiveSolar = w.SolarRadiation * (1 - w.CloudCover/100)
	fv.ApparentTemp = w.Temperature - 0.05*w.WindSpeed
	fv.TempDewSpread = w.Temperature - w.DewPoint

	if w.Precipitation > 0 {
		fv.IsRaining = 1
	}
	if hour >= 6 && hour < 18 {
		fv.IsDaytime = 1
	}

	return fv
}

// RelativeHumidity computes relative humidity (percent) from temperature and
// dew point via the Magnus approximation, clamped to [0,100].
func RelativeHumidity(temp, dewPoint float64) float64 {
	saturation := math.Exp(magnusA * temp / (magnusB + temp))
	actual := math.Exp(magnusA * dewPoint / (magnusB + dewPoint))
	rh := 100 * actual / saturation
	return math.Max(0, math.Min(100, rh))
}

// HeatIndex computes the Rothfusz heat index (°C) from temperature (°C) and
// relative humidity (percent). Below the threshold the polynomial does not
// hold and the heat index is the temperature itself.
func HeatIndex(temp, rh float64) float64 {
	if temp < heatIndexThreshold {
		return temp
	}

	// The regression is defined in Fahrenheit.
	t := temp*9/5 + 32
	hi := -42.379 +
		2.04901523*t +
		10.14333127*rh -
		0.22475541*t*rh -
		6.83783e-3*t*t -
		5.481717e-2*rh*rh +
		1.22874e-3*t*t*rh +
		8.5282e-4*t*rh*rh -
		1.99e-6*t*t*rh*rh

	return (hi - 32) * 5 / 9
}

// isoWeekday maps Go's Sunday-first weekday to ISO numbering, Monday=1
// through Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
