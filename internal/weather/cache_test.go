package weather

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

// hourlyToRecords builds n consecutive hourly records starting at start.
func hourlyToRecords(t *testing.T, region string, start time.Time, n int) []models.WeatherRecord {
	t.Helper()
	records := make([]models.WeatherRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.WeatherRecord{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Region:    region,
			Weather: models.WeatherScalars{
				Temperature:    10 + float64(i),
				DewPoint:       4,
				WindSpeed:      12,
				CloudCover:     70,
				SolarRadiation: 150,
				UVIndex:        2,
			},
		})
	}
	return records
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "weather.db"))
	if err != nil {
		t.Fatalf("OpenCache returned error: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCachePutGetRange(t *testing.T) {
	cache := openTestCache(t)
	start := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)

	if err := cache.Put(hourlyToRecords(t, "north", start, 6)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := cache.GetRange("north", start.Add(time.Hour), start.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("GetRange returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records in range, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(start.Add(time.Hour)) {
		t.Errorf("expected first record at %v, got %v", start.Add(time.Hour), got[0].Timestamp)
	}
	if got[0].Weather.Temperature != 11 {
		t.Errorf("expected temperature 11, got %v", got[0].Weather.Temperature)
	}
}

func TestCacheRangeIsPerRegion(t *testing.T) {
	cache := openTestCache(t)
	start := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)

	if err := cache.Put(hourlyToRecords(t, "north", start, 2)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := cache.GetRange("south", start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetRange returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records for unrelated region, got %d", len(got))
	}
}

func TestCachePutOverwritesSameHour(t *testing.T) {
	cache := openTestCache(t)
	start := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)

	first := hourlyToRecords(t, "north", start, 1)
	if err := cache.Put(first); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	updated := first
	updated[0].Weather.Temperature = 99
	if err := cache.Put(updated); err != nil {
		t.Fatalf("second Put returned error: %v", err)
	}

	got, err := cache.GetRange("north", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetRange returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single record after overwrite, got %d", len(got))
	}
	if got[0].Weather.Temperature != 99 {
		t.Errorf("expected refetched temperature 99, got %v", got[0].Weather.Temperature)
	}
}
