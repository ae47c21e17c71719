package weather

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func hourlyPayload(start time.Time, hours int) map[string]any {
	times := make([]string, hours)
	temps := make([]float64, hours)
	repeat := func(v float64) []float64 {
		vals := make([]float64, hours)
		for i := range vals {
			vals[i] = v
		}
		return vals
	}
	for i := 0; i < hours; i++ {
		times[i] = start.Add(time.Duration(i) * time.Hour).Format("2006-01-02T15:04")
		temps[i] = 10 + float64(i)
	}
	return map[string]any{
		"hourly": map[string]any{
			"time":                times,
			"temperature_2m":      temps,
			"dew_point_2m":        repeat(5),
			"precipitation":       repeat(0),
			"wind_speed_10m":      repeat(12),
			"cloud_cover":         repeat(70),
			"shortwave_radiation": repeat(150),
			"uv_index":            repeat(2),
		},
	}
}

func TestFetchHorizonDecodesHourlySeries(t *testing.T) {
	start := time.Now().UTC().Truncate(time.Hour)

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(hourlyPayload(start, 4))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, testLogger()).WithRetryPolicy(fastPolicy())
	records, err := client.FetchHorizon(context.Background(), "north", 59.91, 10.75, 4)
	if err != nil {
		t.Fatalf("FetchHorizon returned error: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0].Region != "north" {
		t.Errorf("expected region north, got %q", records[0].Region)
	}
	if !records[0].Timestamp.Equal(start) {
		t.Errorf("expected first timestamp %v, got %v", start, records[0].Timestamp)
	}
	if records[2].Weather.Temperature != 12 {
		t.Errorf("expected temperature 12, got %v", records[2].Weather.Temperature)
	}
	for _, part := range []string{"latitude=59.9100", "forecast_hours=4", "timezone=UTC"} {
		if !strings.Contains(gotQuery, part) {
			t.Errorf("expected query to contain %q, got %s", part, gotQuery)
		}
	}
}

func TestFetchHorizonRetriesServerErrors(t *testing.T) {
	start := time.Now().UTC().Truncate(time.Hour)

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(hourlyPayload(start, 2))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, testLogger()).WithRetryPolicy(fastPolicy())
	records, err := client.FetchHorizon(context.Background(), "north", 59.91, 10.75, 2)
	if err != nil {
		t.Fatalf("FetchHorizon returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestFetchHorizonDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad coordinates", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, testLogger()).WithRetryPolicy(fastPolicy())
	if _, err := client.FetchHorizon(context.Background(), "north", 999, 999, 2); err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("expected a single attempt on 400, got %d", calls)
	}
}

func TestFetchHorizonGivesUpAfterMaxRetries(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, testLogger()).WithRetryPolicy(fastPolicy())
	_, err := client.FetchHorizon(context.Background(), "north", 59.91, 10.75, 2)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("expected a max-retries error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts (1 + 3 retries), got %d", calls)
	}
}

func TestFetchHorizonRejectsMismatchedArrays(t *testing.T) {
	start := time.Now().UTC().Truncate(time.Hour)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := hourlyPayload(start, 3)
		payload["hourly"].(map[string]any)["uv_index"] = []float64{1}
		json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, testLogger()).WithRetryPolicy(fastPolicy())
	_, err := client.FetchHorizon(context.Background(), "north", 59.91, 10.75, 3)
	if err == nil {
		t.Fatal("expected an error for mismatched array lengths")
	}
	if !strings.Contains(err.Error(), "uv_index") {
		t.Errorf("expected the mismatched variable to be named, got %v", err)
	}
}

func TestFetchHorizonServesFullCacheHit(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "weather.db"))
	if err != nil {
		t.Fatalf("OpenCache returned error: %v", err)
	}
	defer cache.Close()

	start := time.Now().UTC().Truncate(time.Hour)
	seed := hourlyToRecords(t, "north", start, 3)
	if err := cache.Put(seed); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("network request made despite full cache")
	}))
	defer server.Close()

	client := NewClient(server.URL, cache, testLogger()).WithRetryPolicy(fastPolicy())
	records, err := client.FetchHorizon(context.Background(), "north", 59.91, 10.75, 3)
	if err != nil {
		t.Fatalf("FetchHorizon returned error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 cached records, got %d", len(records))
	}
	if records[1].Weather.Temperature != seed[1].Weather.Temperature {
		t.Errorf("expected cached temperature %v, got %v",
			seed[1].Weather.Temperature, records[1].Weather.Temperature)
	}
}
