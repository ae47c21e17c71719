package models

import "time"

// TrainingSample pairs an observed demand value with the feature vector
// derived for its timestep. Samples are immutable once built; one exists per
// (region, timestamp) with full lag coverage unless partial-lag inclusion
// was requested at build time.
type TrainingSample struct {
	Timestamp time.Time     `json:"timestamp"`
	Region    string        `json:"region"`
	Demand    float64       `json:"demand"`
	Features  FeatureVector `json:"features"`
}
