package api

import (
	"math"
	"testing"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

func TestValidateTriggerRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.TriggerRunRequest
		wantErr bool
	}{
		{
			name: "valid linear run",
			req:  models.TriggerRunRequest{Model: "linear", HorizonHours: 24},
		},
		{
			name: "valid boosted run with regions",
			req:  models.TriggerRunRequest{Model: "boosted", HorizonHours: 168, Regions: []string{"north", "south"}},
		},
		{
			name:    "unknown model",
			req:     models.TriggerRunRequest{Model: "oracle", HorizonHours: 24},
			wantErr: true,
		},
		{
			name:    "zero horizon",
			req:     models.TriggerRunRequest{Model: "linear", HorizonHours: 0},
			wantErr: true,
		},
		{
			name:    "horizon beyond two weeks",
			req:     models.TriggerRunRequest{Model: "linear", HorizonHours: 400},
			wantErr: true,
		},
		{
			name:    "scale below negative hundred percent",
			req:     models.TriggerRunRequest{Model: "linear", HorizonHours: 24, ScalePercent: -150},
			wantErr: true,
		},
		{
			name:    "blank region name",
			req:     models.TriggerRunRequest{Model: "linear", HorizonHours: 24, Regions: []string{"north", " "}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTriggerRequest(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTriggerRequest() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestValidateJobRequest(t *testing.T) {
	valid := models.CreateJobRequest{
		Name:         "nightly",
		Model:        "hybrid",
		HorizonHours: 48,
	}

	if err := ValidateJobRequest(&valid); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*models.CreateJobRequest)
	}{
		{"missing name", func(r *models.CreateJobRequest) { r.Name = "  " }},
		{"unknown model", func(r *models.CreateJobRequest) { r.Model = "ensemble" }},
		{"zero horizon", func(r *models.CreateJobRequest) { r.HorizonHours = 0 }},
		{"interval too short when enabled", func(r *models.CreateJobRequest) {
			r.ScheduleEnabled = true
			r.ScheduleInterval = 1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			if err := ValidateJobRequest(&req); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestValidateDemandRecords(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	good := []models.DemandRecord{{Timestamp: now, Region: "north", Demand: 1000}}
	if err := validateDemandRecords(good); err != nil {
		t.Fatalf("expected valid records, got error: %v", err)
	}

	bad := []models.DemandRecord{
		{Timestamp: now, Region: "", Demand: 1000},
	}
	if err := validateDemandRecords(bad); err == nil {
		t.Fatal("expected error for missing region")
	}

	negative := []models.DemandRecord{
		{Timestamp: now, Region: "north", Demand: -10},
	}
	if err := validateDemandRecords(negative); err == nil {
		t.Fatal("expected error for negative demand")
	}
}

func TestValidateWeatherRecordsRejectsNonFinite(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	records := []models.WeatherRecord{{
		Timestamp: now,
		Region:    "north",
		Weather:   models.WeatherScalars{Temperature: math.NaN()},
	}}

	if err := validateWeatherRecords(records); err == nil {
		t.Fatal("expected error for non-finite weather value")
	}
}

func TestValidateJobRequestAllowsDisabledSchedule(t *testing.T) {
	req := models.CreateJobRequest{
		Name:             "manual only",
		Model:            "linear",
		HorizonHours:     24,
		ScheduleEnabled:  false,
		ScheduleInterval: 0,
	}

	if err := ValidateJobRequest(&req); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}
}
