package forecaster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/gridcast/gridcast/internal/features"
	"github.com/gridcast/gridcast/internal/models"
	"github.com/gridcast/gridcast/internal/predictor"
)

var historyStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // a Monday

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWeather(temp float64) models.WeatherScalars {
	return models.WeatherScalars{
		Temperature:    temp,
		DewPoint:       temp - 8,
		WindSpeed:      10,
		CloudCover:     50,
		SolarRadiation: 300,
		UVIndex:        3,
	}
}

// constantHistory builds days of hourly records at a flat 1000 MW.
func constantHistory(region string, days int) []models.HourlyRecord {
	recs := make([]models.HourlyRecord, 0, days*24)
	for i := 0; i < days*24; i++ {
		recs = append(recs, models.HourlyRecord{
			Timestamp: historyStart.Add(time.Duration(i) * time.Hour),
			Region:    region,
			Demand:    1000,
			Weather:   testWeather(15),
		})
	}
	return recs
}

// variedHistory builds days of hourly records with an hour-shaped load curve.
func variedHistory(region string, days int) []models.HourlyRecord {
	recs := make([]models.HourlyRecord, 0, days*24)
	for i := 0; i < days*24; i++ {
		ts := historyStart.Add(time.Duration(i) * time.Hour)
		hour := float64(ts.Hour())
		recs = append(recs, models.HourlyRecord{
			Timestamp: ts,
			Region:    region,
			Demand:    900 + 15*hour + 3*float64(i%7),
			Weather:   testWeather(10 + hour/2),
		})
	}
	return recs
}

func weatherHorizon(region string, start time.Time, hours int, temp float64) []models.WeatherRecord {
	recs := make([]models.WeatherRecord, 0, hours)
	for i := 0; i < hours; i++ {
		recs = append(recs, models.WeatherRecord{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Region:    region,
			Weather:   testWeather(temp),
		})
	}
	return recs
}

func baseParams(model string) Params {
	return Params{Model: model, BlendRatio: DefaultBlendRatio, Seed: 42}
}

func newTestService() *Service {
	return NewService(features.DefaultCalendar(), testLogger(), nil)
}

func TestRunConstantHistoryReproducesDemand(t *testing.T) {
	history := constantHistory("north", 21)
	horizon := weatherHorizon("north", historyStart.Add(21*24*time.Hour), 24, 15)

	tests := []struct {
		model   string
		epsilon float64
	}{
		// The ridge term shrinks the linear coefficients, so a flat
		// history reproduces only to within a small tolerance.
		{model: predictor.ModelLinear, epsilon: 0.5},
		{model: predictor.ModelHybrid, epsilon: 0},
		{model: predictor.ModelBoosted, epsilon: 0},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			report, err := newTestService().Run(context.Background(), RunInput{
				Merged:  history,
				Horizon: horizon,
				Params:  baseParams(tt.model),
			})
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			if len(report.Results) != 24 {
				t.Fatalf("expected 24 results, got %d", len(report.Results))
			}
			for _, r := range report.Results {
				if math.Abs(r.Demand-1000) > tt.epsilon {
					t.Errorf("%s: expected 1000 (±%v), got %v", r.Timestamp, tt.epsilon, r.Demand)
				}
				if r.LagTier != models.TierExact {
					t.Errorf("%s: expected exact lag tier with dense history, got %s", r.Timestamp, r.LagTier)
				}
				if r.Blended {
					t.Errorf("%s: blending must not engage on exact lags", r.Timestamp)
				}
			}
		})
	}
}

func TestRunScaleMultipliesExactly(t *testing.T) {
	history := variedHistory("north", 21)
	horizon := weatherHorizon("north", historyStart.Add(21*24*time.Hour), 24, 14)

	for _, model := range []string{predictor.ModelLinear, predictor.ModelHybrid, predictor.ModelBoosted} {
		t.Run(model, func(t *testing.T) {
			unscaled, err := newTestService().Run(context.Background(), RunInput{
				Merged: history, Horizon: horizon, Params: baseParams(model),
			})
			if err != nil {
				t.Fatalf("unscaled Run returned error: %v", err)
			}

			params := baseParams(model)
			params.ScalePercent = 5
			scaled, err := newTestService().Run(context.Background(), RunInput{
				Merged: history, Horizon: horizon, Params: params,
			})
			if err != nil {
				t.Fatalf("scaled Run returned error: %v", err)
			}

			for i := range unscaled.Results {
				want := unscaled.Results[i].Demand * 1.05
				if got := scaled.Results[i].Demand; got != want {
					t.Errorf("step %d: expected %v, got %v", i, want, got)
				}
			}
		})
	}
}

func TestRunReportsPositionFit(t *testing.T) {
	history := variedHistory("north", 21)
	horizon := weatherHorizon("north", historyStart.Add(21*24*time.Hour), 24, 14)

	hybrid, err := newTestService().Run(context.Background(), RunInput{
		Merged: history, Horizon: horizon, Params: baseParams(predictor.ModelHybrid),
	})
	if err != nil {
		t.Fatalf("hybrid Run returned error: %v", err)
	}
	if hybrid.PositionR2 <= 0 || hybrid.PositionR2 > 1 {
		t.Errorf("expected position fit in (0, 1], got %v", hybrid.PositionR2)
	}

	// Models without a position regression leave the field unset.
	linear, err := newTestService().Run(context.Background(), RunInput{
		Merged: history, Horizon: horizon, Params: baseParams(predictor.ModelLinear),
	})
	if err != nil {
		t.Fatalf("linear Run returned error: %v", err)
	}
	if linear.PositionR2 != 0 {
		t.Errorf("expected zero position fit for linear model, got %v", linear.PositionR2)
	}
}

func TestRunIdenticalInputsIdenticalOutput(t *testing.T) {
	history := variedHistory("north", 21)
	horizon := weatherHorizon("north", historyStart.Add(21*24*time.Hour), 48, 14)
	params := baseParams(predictor.ModelBoosted)

	first, err := newTestService().Run(context.Background(), RunInput{
		Merged: history, Horizon: horizon, Params: params,
	})
	if err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	second, err := newTestService().Run(context.Background(), RunInput{
		Merged: history, Horizon: horizon, Params: params,
	})
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	for i := range first.Results {
		if first.Results[i].Demand != second.Results[i].Demand {
			t.Errorf("step %d: %v vs %v", i, first.Results[i].Demand, second.Results[i].Demand)
		}
	}
}

func TestRunColdStartBlending(t *testing.T) {
	history := constantHistory("north", 21)
	// Horizon a month past the end of history: the first step has no exact
	// 1h lag, later steps read the written-back forecasts.
	gapStart := historyStart.Add(52 * 24 * time.Hour)
	horizon := weatherHorizon("north", gapStart, 6, 15)

	report, err := newTestService().Run(context.Background(), RunInput{
		Merged: history, Horizon: horizon, Params: baseParams(predictor.ModelLinear),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	first := report.Results[0]
	if first.LagTier == models.TierExact {
		t.Error("first step across a gap cannot have an exact 1h lag")
	}
	if !first.Blended {
		t.Error("expected cold-start blending on the first step")
	}
	if math.Abs(first.Demand-1000) > 1 {
		t.Errorf("blend of flat history should stay near 1000, got %v", first.Demand)
	}

	second := report.Results[1]
	if second.LagTier != models.TierExact {
		t.Errorf("second step should resolve the written-back forecast exactly, got %s", second.LagTier)
	}
	if second.Blended {
		t.Error("blending must disengage once write-backs provide exact lags")
	}
}

func TestRunInputValidation(t *testing.T) {
	history := constantHistory("north", 21)
	horizon := weatherHorizon("north", historyStart.Add(21*24*time.Hour), 24, 15)

	tests := []struct {
		name  string
		input RunInput
	}{
		{
			name:  "missing model",
			input: RunInput{Merged: history, Horizon: horizon, Params: Params{BlendRatio: 0.5}},
		},
		{
			name: "blend ratio out of range",
			input: RunInput{Merged: history, Horizon: horizon,
				Params: Params{Model: predictor.ModelLinear, BlendRatio: 1.5}},
		},
		{
			name:  "no history",
			input: RunInput{Horizon: horizon, Params: baseParams(predictor.ModelLinear)},
		},
		{
			name:  "empty horizon",
			input: RunInput{Merged: history, Params: baseParams(predictor.ModelLinear)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newTestService().Run(context.Background(), tt.input); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestRunCanceledContext(t *testing.T) {
	history := constantHistory("north", 21)
	horizon := weatherHorizon("north", historyStart.Add(21*24*time.Hour), 24, 15)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService().Run(ctx, RunInput{
		Merged: history, Horizon: horizon, Params: baseParams(predictor.ModelLinear),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeRunStore struct {
	created  *models.ForecastRun
	updated  []models.ForecastRun
	results  []models.ForecastResult
	resultID string
}

func (f *fakeRunStore) CreateRun(_ context.Context, run *models.ForecastRun) error {
	copied := *run
	f.created = &copied
	return nil
}

func (f *fakeRunStore) UpdateRun(_ context.Context, run *models.ForecastRun) error {
	f.updated = append(f.updated, *run)
	return nil
}

func (f *fakeRunStore) InsertResults(_ context.Context, runID string, results []models.ForecastResult) error {
	f.resultID = runID
	f.results = append(f.results, results...)
	return nil
}

type fakeSnapshotStore struct {
	regions []string
	snap    *models.LinearSnapshot
}

func (f *fakeSnapshotStore) SaveSnapshot(_ context.Context, regions []string, snap *models.LinearSnapshot) (string, error) {
	f.regions = regions
	f.snap = snap
	return "snapshot-id", nil
}

func TestRunPersistsRunResultsAndSnapshot(t *testing.T) {
	history := constantHistory("north", 21)
	horizon := weatherHorizon("north", historyStart.Add(21*24*time.Hour), 24, 15)

	runs := &fakeRunStore{}
	snaps := &fakeSnapshotStore{}
	svc := newTestService().WithStores(runs, snaps)

	report, err := svc.Run(context.Background(), RunInput{
		Merged: history, Horizon: horizon, Params: baseParams(predictor.ModelLinear),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if runs.created == nil {
		t.Fatal("expected the run row to be created up front")
	}
	if runs.created.Status != models.RunStatusRunning {
		t.Errorf("expected initial status running, got %s", runs.created.Status)
	}
	if runs.resultID != report.RunID {
		t.Errorf("results stored under run %s, report says %s", runs.resultID, report.RunID)
	}
	if len(runs.results) != len(report.Results) {
		t.Errorf("expected %d stored results, got %d", len(report.Results), len(runs.results))
	}

	final := runs.updated[len(runs.updated)-1]
	if final.Status != models.RunStatusCompleted {
		t.Errorf("expected final status completed, got %s", final.Status)
	}
	if final.Metrics == nil {
		t.Error("expected metrics on the finalized run")
	}
	if final.CompletedAt == nil {
		t.Error("expected a completion timestamp")
	}

	if snaps.snap == nil {
		t.Fatal("expected a linear snapshot to be stored")
	}
	if len(snaps.snap.Coefficients) != models.FeatureCount {
		t.Errorf("expected %d coefficients, got %d", models.FeatureCount, len(snaps.snap.Coefficients))
	}
	if len(snaps.regions) != 1 || snaps.regions[0] != "north" {
		t.Errorf("expected snapshot regions [north], got %v", snaps.regions)
	}
}

func TestRunRecordsFailure(t *testing.T) {
	history := constantHistory("north", 21)
	// Horizon region the model never saw: the hybrid fails fast on the
	// missing profile.
	horizon := weatherHorizon("south", historyStart.Add(21*24*time.Hour), 24, 15)

	runs := &fakeRunStore{}
	svc := newTestService().WithStores(runs, nil)

	_, err := svc.Run(context.Background(), RunInput{
		Merged: history, Horizon: horizon, Params: baseParams(predictor.ModelHybrid),
	})
	if err == nil {
		t.Fatal("expected the run to fail")
	}

	if len(runs.updated) == 0 {
		t.Fatal("expected the failure to be recorded")
	}
	final := runs.updated[len(runs.updated)-1]
	if final.Status != models.RunStatusFailed {
		t.Errorf("expected status failed, got %s", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Error("expected an error message on the failed run")
	}
}
