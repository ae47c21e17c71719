package models

import (
	"time"
)

// FallbackTier identifies which tier of the historical fallback chain
// produced a resolved lag value.
type FallbackTier string

const (
	TierExact       FallbackTier = "exact"
	TierSimilarDays FallbackTier = "similar_days"
	TierTypical     FallbackTier = "typical"
	TierLastKnown   FallbackTier = "last_known"
	TierNone        FallbackTier = "none"
)

// ForecastResult is one predicted timestep. Results are written back into
// the historical index as soon as they are produced so later timesteps in
// the same run can consume them as lag history.
type ForecastResult struct {
	Timestamp time.Time    `json:"timestamp"`
	Region    string       `json:"region"`
	Demand    float64      `json:"demand"`   // MW, always >= 0
	LagTier   FallbackTier `json:"lag_tier"` // tier that resolved the 1h lag
	Blended   bool         `json:"blended"`  // cold-start blending applied
}

// Metrics summarizes training fit quality.
type Metrics struct {
	R2   float64 `json:"r2"`
	MAPE float64 `json:"mape"` // percent, zero actuals skipped
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// Forecast run lifecycle states.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ForecastRun records a single execution of the pipeline.
type ForecastRun struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"` // linear | hybrid | boosted
	Regions      []string   `json:"regions"`
	HorizonHours int        `json:"horizon_hours"`
	ScalePercent float64    `json:"scale_percent"`
	Status       string     `json:"status"` // running | completed | failed
	Metrics      *Metrics   `json:"metrics,omitempty"`
	SampleCount  int        `json:"sample_count"`
	ResultCount  int        `json:"result_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RunReport is the in-memory output of a completed service run.
type RunReport struct {
	RunID       string             `json:"run_id"`
	Model       string             `json:"model"`
	Metrics     Metrics            `json:"metrics"`
	SampleCount int                `json:"sample_count"`
	Results     []ForecastResult   `json:"results"`
	Importance  map[string]float64 `json:"importance,omitempty"`  // boosted model only
	PositionR2  float64            `json:"position_r2,omitempty"` // hybrid model only
	Duration    time.Duration      `json:"duration"`
}

// ForecastJob is a stored schedule that triggers runs automatically.
type ForecastJob struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Model            string     `json:"model"`
	Regions          []string   `json:"regions"`
	HorizonHours     int        `json:"horizon_hours"`
	ScalePercent     float64    `json:"scale_percent"`
	GrowthPercent    float64    `json:"growth_percent"`
	ScheduleEnabled  bool       `json:"schedule_enabled"`
	ScheduleInterval int        `json:"schedule_interval"` // minutes
	LastRunAt        *time.Time `json:"last_run_at,omitempty"`
	NextRunAt        *time.Time `json:"next_run_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CreateJobRequest creates a new scheduled forecast job.
type CreateJobRequest struct {
	Name             string   `json:"name"`
	Model            string   `json:"model"`
	Regions          []string `json:"regions"`
	HorizonHours     int      `json:"horizon_hours"`
	ScalePercent     float64  `json:"scale_percent"`
	GrowthPercent    float64  `json:"growth_percent"`
	ScheduleEnabled  bool     `json:"schedule_enabled"`
	ScheduleInterval int      `json:"schedule_interval"`
}

// TriggerRunRequest starts an ad-hoc forecast run.
type TriggerRunRequest struct {
	Model         string   `json:"model"`
	Regions       []string `json:"regions"`
	HorizonHours  int      `json:"horizon_hours"`
	ScalePercent  float64  `json:"scale_percent"`
	GrowthPercent float64  `json:"growth_percent"`
}

// LinearSnapshot is the serializable linear-model representation: parallel
// positional arrays reusable without retraining.
type LinearSnapshot struct {
	ID           string    `json:"id,omitempty"`
	FeatureNames []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	TrainedAt    time.Time `json:"trained_at"`
}
