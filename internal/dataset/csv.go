// Package dataset reads and writes the CSV file formats consumed by batch
// runs: historical demand, merged demand+weather, forecast-horizon weather,
// and the forecast output.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
}

// demand columns: timestamp,region,demand_mw
// weather columns: temperature,dew_point,precipitation,wind_speed,
//                  cloud_cover,solar_radiation,uv_index
// merged files carry both sets.

// ReadDemandSeries parses a raw demand CSV.
func ReadDemandSeries(path string) ([]models.DemandRecord, error) {
	rows, header, err := readAll(path)
	if err != nil {
		return nil, err
	}
	cols, err := columnIndex(header, path, "timestamp", "region", "demand_mw")
	if err != nil {
		return nil, err
	}

	records := make([]models.DemandRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := parseDemandRow(row, cols)
		if err != nil {
			return nil, rowError(path, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadMergedSeries parses a time-aligned demand+weather CSV.
func ReadMergedSeries(path string) ([]models.HourlyRecord, error) {
	rows, header, err := readAll(path)
	if err != nil {
		return nil, err
	}
	cols, err := columnIndex(header, path, append([]string{"timestamp", "region", "demand_mw"}, weatherColumns...)...)
	if err != nil {
		return nil, err
	}

	records := make([]models.HourlyRecord, 0, len(rows))
	for i, row := range rows {
		demand, err := parseDemandRow(row, cols)
		if err != nil {
			return nil, rowError(path, i, err)
		}
		weather, err := parseWeatherColumns(row, cols)
		if err != nil {
			return nil, rowError(path, i, err)
		}
		records = append(records, models.HourlyRecord{
			Timestamp: demand.Timestamp,
			Region:    demand.Region,
			Demand:    demand.Demand,
			Weather:   weather,
		})
	}
	return records, nil
}

// ReadWeatherSeries parses a forecast-horizon weather CSV.
func ReadWeatherSeries(path string) ([]models.WeatherRecord, error) {
	rows, header, err := readAll(path)
	if err != nil {
		return nil, err
	}
	cols, err := columnIndex(header, path, append([]string{"timestamp", "region"}, weatherColumns...)...)
	if err != nil {
		return nil, err
	}

	records := make([]models.WeatherRecord, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTimestamp(row[cols["timestamp"]])
		if err != nil {
			return nil, rowError(path, i, err)
		}
		region := strings.TrimSpace(row[cols["region"]])
		if region == "" {
			return nil, rowError(path, i, fmt.Errorf("empty region"))
		}
		weather, err := parseWeatherColumns(row, cols)
		if err != nil {
			return nil, rowError(path, i, err)
		}
		records = append(records, models.WeatherRecord{
			Timestamp: ts,
			Region:    region,
			Weather:   weather,
		})
	}
	return records, nil
}

// WriteForecasts emits the forecast output CSV.
func WriteForecasts(path string, results []models.ForecastResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "region", "demand_mw", "lag_tier", "blended"}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, r := range results {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Region,
			strconv.FormatFloat(r.Demand, 'f', 3, 64),
			string(r.LagTier),
			strconv.FormatBool(r.Blended),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var weatherColumns = []string{
	"temperature", "dew_point", "precipitation", "wind_speed",
	"cloud_cover", "solar_radiation", "uv_index",
}

// readAll opens the file and returns all data rows plus the header. Blank
// lines are skipped by the csv reader's record-length handling; a missing
// header is an error.
func readAll(path string) ([][]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s: missing header row", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s header: %w", path, err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func columnIndex(header []string, path string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}
	return cols, nil
}

func parseDemandRow(row []string, cols map[string]int) (models.DemandRecord, error) {
	ts, err := parseTimestamp(row[cols["timestamp"]])
	if err != nil {
		return models.DemandRecord{}, err
	}
	region := strings.TrimSpace(row[cols["region"]])
	if region == "" {
		return models.DemandRecord{}, fmt.Errorf("empty region")
	}
	demand, err := parseFloat(row[cols["demand_mw"]], "demand_mw")
	if err != nil {
		return models.DemandRecord{}, err
	}
	return models.DemandRecord{Timestamp: ts, Region: region, Demand: demand}, nil
}

func parseWeatherColumns(row []string, cols map[string]int) (models.WeatherScalars, error) {
	var w models.WeatherScalars
	fields := []struct {
		name string
		dst  *float64
	}{
		{"temperature", &w.Temperature},
		{"dew_point", &w.DewPoint},
		{"precipitation", &w.Precipitation},
		{"wind_speed", &w.WindSpeed},
		{"cloud_cover", &w.CloudCover},
		{"solar_radiation", &w.SolarRadiation},
		{"uv_index", &w.UVIndex},
	}
	for _, f := range fields {
		v, err := parseFloat(row[cols[f.name]], f.name)
		if err != nil {
			return models.WeatherScalars{}, err
		}
		*f.dst = v
	}
	if err := w.Validate(); err != nil {
		return models.WeatherScalars{}, err
	}
	return w, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %s", s)
}

func parseFloat(s, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

// rowError numbers rows from 1, counting the header as row 1.
func rowError(path string, dataRow int, err error) error {
	return fmt.Errorf("%s row %d: %w", path, dataRow+2, err)
}
