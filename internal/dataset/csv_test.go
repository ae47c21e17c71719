package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestReadDemandSeries(t *testing.T) {
	path := writeFile(t, "demand.csv", strings.Join([]string{
		"timestamp,region,demand_mw",
		"2024-03-04T00:00:00Z,north,1042.5",
		"2024-03-04 01:00,north,1011.0",
		"",
		"2024-03-04T02:00:00Z,south,880.25",
	}, "\n"))

	records, err := ReadDemandSeries(path)
	if err != nil {
		t.Fatalf("ReadDemandSeries returned error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	want := time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC)
	if !records[1].Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, records[1].Timestamp)
	}
	if records[1].Demand != 1011.0 {
		t.Errorf("expected demand 1011, got %v", records[1].Demand)
	}
	if records[2].Region != "south" {
		t.Errorf("expected region south, got %q", records[2].Region)
	}
}

func TestReadDemandSeriesErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIn  string
	}{
		{
			name:    "missing header",
			content: "",
			wantIn:  "missing header",
		},
		{
			name:    "missing column",
			content: "timestamp,region\n2024-03-04T00:00:00Z,north",
			wantIn:  `missing column "demand_mw"`,
		},
		{
			name:    "bad timestamp names row",
			content: "timestamp,region,demand_mw\n2024-03-04T00:00:00Z,north,100\nnot-a-time,north,100",
			wantIn:  "row 3",
		},
		{
			name:    "bad demand names row",
			content: "timestamp,region,demand_mw\n2024-03-04T00:00:00Z,north,abc",
			wantIn:  "row 2",
		},
		{
			name:    "empty region",
			content: "timestamp,region,demand_mw\n2024-03-04T00:00:00Z, ,100",
			wantIn:  "empty region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "demand.csv", tt.content)
			_, err := ReadDemandSeries(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("expected error containing %q, got %v", tt.wantIn, err)
			}
		})
	}
}

const mergedHeader = "timestamp,region,demand_mw,temperature,dew_point,precipitation,wind_speed,cloud_cover,solar_radiation,uv_index"

func TestReadMergedSeries(t *testing.T) {
	path := writeFile(t, "merged.csv", strings.Join([]string{
		mergedHeader,
		"2024-03-04T00:00:00Z,north,1042.5,12.5,6.0,0,14.2,75,120,1.5",
		"2024-03-04T01:00:00Z,north,1011.0,12.1,5.8,0.4,13.0,80,0,0",
	}, "\n"))

	records, err := ReadMergedSeries(path)
	if err != nil {
		t.Fatalf("ReadMergedSeries returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Weather.Temperature != 12.5 {
		t.Errorf("expected temperature 12.5, got %v", records[0].Weather.Temperature)
	}
	if records[1].Weather.Precipitation != 0.4 {
		t.Errorf("expected precipitation 0.4, got %v", records[1].Weather.Precipitation)
	}
}

func TestReadMergedSeriesRejectsNonFiniteWeather(t *testing.T) {
	path := writeFile(t, "merged.csv", strings.Join([]string{
		mergedHeader,
		"2024-03-04T00:00:00Z,north,1042.5,NaN,6.0,0,14.2,75,120,1.5",
	}, "\n"))

	if _, err := ReadMergedSeries(path); err == nil {
		t.Fatal("expected an error for NaN temperature")
	}
}

func TestReadWeatherSeries(t *testing.T) {
	path := writeFile(t, "weather.csv", strings.Join([]string{
		"timestamp,region,temperature,dew_point,precipitation,wind_speed,cloud_cover,solar_radiation,uv_index",
		"2024-03-25T00:00:00Z,north,9.5,4.0,0,10,60,0,0",
		"2024-03-25T01:00:00Z,north,9.1,3.8,0,11,65,0,0",
	}, "\n"))

	records, err := ReadWeatherSeries(path)
	if err != nil {
		t.Fatalf("ReadWeatherSeries returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Region != "north" || records[0].Weather.Temperature != 9.5 {
		t.Errorf("unexpected first record: %+v", records[0])
	}
}

func TestWriteForecastsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	results := []models.ForecastResult{
		{
			Timestamp: time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC),
			Region:    "north",
			Demand:    1042.125,
			LagTier:   models.TierExact,
		},
		{
			Timestamp: time.Date(2024, 3, 25, 1, 0, 0, 0, time.UTC),
			Region:    "north",
			Demand:    998.5,
			LagTier:   models.TierSimilarDays,
			Blended:   true,
		},
	}

	if err := WriteForecasts(path, results); err != nil {
		t.Fatalf("WriteForecasts returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "timestamp,region,demand_mw,lag_tier,blended" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != "2024-03-25T00:00:00Z,north,1042.125,exact,false" {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if lines[2] != "2024-03-25T01:00:00Z,north,998.500,similar_days,true" {
		t.Errorf("unexpected second row: %s", lines[2])
	}
}
