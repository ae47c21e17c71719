package models

import (
	"fmt"
	"math"
	"time"
)

// WeatherScalars bundles the raw weather inputs sampled at the start of an
// hour. All fields are required and must be finite before feature derivation.
type WeatherScalars struct {
	Temperature    float64 `json:"temperature"`     // °C
	DewPoint       float64 `json:"dew_point"`       // °C
	Precipitation  float64 `json:"precipitation"`   // mm/h
	WindSpeed      float64 `json:"wind_speed"`      // km/h
	CloudCover     float64 `json:"cloud_cover"`     // percent, 0-100
	SolarRadiation float64 `json:"solar_radiation"` // W/m²
	UVIndex        float64 `json:"uv_index"`
}

// Validate checks that every scalar is a finite number.
func (w WeatherScalars) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"temperature", w.Temperature},
		{"dew_point", w.DewPoint},
		{"precipitation", w.Precipitation},
		{"wind_speed", w.WindSpeed},
		{"cloud_cover", w.CloudCover},
		{"solar_radiation", w.SolarRadiation},
		{"uv_index", w.UVIndex},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("weather field %s is not finite", f.name)
		}
	}
	return nil
}

// HourlyRecord is one row of the merged historical series: a demand reading
// time-aligned with the weather sampled at the start of the same hour.
type HourlyRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Region    string         `json:"region"`
	Demand    float64        `json:"demand"` // MW
	Weather   WeatherScalars `json:"weather"`
}

// DemandRecord is a raw demand reading independent of weather alignment,
// used to build recency and typical-average fallbacks.
type DemandRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Region    string    `json:"region"`
	Demand    float64   `json:"demand"`
}

// WeatherRecord is one timestep of the forecast-horizon weather series.
type WeatherRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Region    string         `json:"region"`
	Weather   WeatherScalars `json:"weather"`
}
