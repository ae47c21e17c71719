package api

import (
	"fmt"
	"strings"

	"github.com/gridcast/gridcast/internal/models"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Horizon bounds in hours. Two weeks is the longest horizon the fallback
// chain produces sensible lags for.
const (
	minHorizonHours = 1
	maxHorizonHours = 336
)

func validModel(model string) bool {
	switch model {
	case "linear", "hybrid", "boosted":
		return true
	}
	return false
}

// ValidateTriggerRequest validates an ad-hoc run request.
func ValidateTriggerRequest(req *models.TriggerRunRequest) error {
	if !validModel(req.Model) {
		return ValidationError{Field: "model", Message: "must be one of linear, hybrid, boosted"}
	}
	if req.HorizonHours < minHorizonHours || req.HorizonHours > maxHorizonHours {
		return ValidationError{Field: "horizon_hours", Message: fmt.Sprintf("must be between %d and %d", minHorizonHours, maxHorizonHours)}
	}
	if req.ScalePercent < -100 {
		return ValidationError{Field: "scale_percent", Message: "cannot reduce demand below zero"}
	}
	for _, region := range req.Regions {
		if strings.TrimSpace(region) == "" {
			return ValidationError{Field: "regions", Message: "region names cannot be empty"}
		}
	}
	return nil
}

// ValidateJobRequest validates a scheduled job definition.
func ValidateJobRequest(req *models.CreateJobRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if !validModel(req.Model) {
		return ValidationError{Field: "model", Message: "must be one of linear, hybrid, boosted"}
	}
	if req.HorizonHours < minHorizonHours || req.HorizonHours > maxHorizonHours {
		return ValidationError{Field: "horizon_hours", Message: fmt.Sprintf("must be between %d and %d", minHorizonHours, maxHorizonHours)}
	}
	if req.ScalePercent < -100 {
		return ValidationError{Field: "scale_percent", Message: "cannot reduce demand below zero"}
	}
	if req.ScheduleEnabled && req.ScheduleInterval < 5 {
		return ValidationError{Field: "schedule_interval", Message: "must be at least 5 minutes when the schedule is enabled"}
	}
	for _, region := range req.Regions {
		if strings.TrimSpace(region) == "" {
			return ValidationError{Field: "regions", Message: "region names cannot be empty"}
		}
	}
	return nil
}
