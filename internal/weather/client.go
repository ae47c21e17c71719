// Package weather fetches forecast-horizon weather series from an
// Open-Meteo style HTTP endpoint, with an optional SQLite cache in front of
// the network.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

const (
	defaultTimeout = 15 * time.Second

	// hourlyVariables is the fixed variable list requested per fetch, in
	// the order the response arrays are mapped to WeatherScalars.
	hourlyVariables = "temperature_2m,dew_point_2m,precipitation,wind_speed_10m,cloud_cover,shortwave_radiation,uv_index"
)

// hourlyResponse mirrors the hourly block of an Open-Meteo forecast reply.
type hourlyResponse struct {
	Hourly struct {
		Time               []string  `json:"time"`
		Temperature        []float64 `json:"temperature_2m"`
		DewPoint           []float64 `json:"dew_point_2m"`
		Precipitation      []float64 `json:"precipitation"`
		WindSpeed          []float64 `json:"wind_speed_10m"`
		CloudCover         []float64 `json:"cloud_cover"`
		ShortwaveRadiation []float64 `json:"shortwave_radiation"`
		UVIndex            []float64 `json:"uv_index"`
	} `json:"hourly"`
}

// Client fetches hourly weather forecasts. A nil cache disables caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     RetryPolicy
	cache      *Cache
	logger     *slog.Logger
}

// NewClient builds a client for the given base URL (scheme and host, no
// trailing path).
func NewClient(baseURL string, cache *Cache, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		policy:     DefaultRetryPolicy(),
		cache:      cache,
		logger:     logger,
	}
}

// WithRetryPolicy overrides the default retry policy.
func (c *Client) WithRetryPolicy(policy RetryPolicy) *Client {
	c.policy = policy
	return c
}

// FetchHorizon returns an hours-long hourly weather series for the region
// starting at the current hour. A full cache hit bypasses the network;
// fetched series are written through to the cache.
func (c *Client) FetchHorizon(ctx context.Context, region string, lat, lon float64, hours int) ([]models.WeatherRecord, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", hours)
	}

	start := time.Now().UTC().Truncate(time.Hour)
	end := start.Add(time.Duration(hours) * time.Hour)

	if c.cache != nil {
		cached, err := c.cache.GetRange(region, start, end)
		if err != nil {
			c.logger.Warn("weather cache read failed", "region", region, "error", err)
		} else if len(cached) == hours {
			c.logger.Debug("weather cache hit", "region", region, "hours", hours)
			return cached, nil
		}
	}

	records, err := c.fetch(ctx, region, lat, lon, hours)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(records); err != nil {
			c.logger.Warn("weather cache write failed", "region", region, "error", err)
		}
	}
	return records, nil
}

func (c *Client) fetch(ctx context.Context, region string, lat, lon float64, hours int) ([]models.WeatherRecord, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	query.Set("hourly", hourlyVariables)
	query.Set("forecast_hours", strconv.Itoa(hours))
	query.Set("timezone", "UTC")
	endpoint := c.baseURL + "/v1/forecast?" + query.Encode()

	var payload hourlyResponse
	err := retry(ctx, c.policy, func() error {
		return c.doRequest(ctx, endpoint, &payload)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch weather for %s: %w", region, err)
	}

	return decodeHourly(region, payload)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, payload *hourlyResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		re := &retryableError{err: fmt.Errorf("rate limited: %s", resp.Status)}
		if after, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil {
			re.retryAfter = time.Duration(after) * time.Second
		}
		return re
	case resp.StatusCode >= 500:
		return &retryableError{err: fmt.Errorf("server error: %s", resp.Status)}
	default:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(payload); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeHourly maps the parallel response arrays to records. Array lengths
// must agree with the time axis; a provider glitch here is an error, not a
// truncation.
func decodeHourly(region string, payload hourlyResponse) ([]models.WeatherRecord, error) {
	h := payload.Hourly
	n := len(h.Time)
	if n == 0 {
		return nil, fmt.Errorf("empty hourly response for %s", region)
	}
	for name, arr := range map[string][]float64{
		"temperature_2m":      h.Temperature,
		"dew_point_2m":        h.DewPoint,
		"precipitation":       h.Precipitation,
		"wind_speed_10m":      h.WindSpeed,
		"cloud_cover":         h.CloudCover,
		"shortwave_radiation": h.ShortwaveRadiation,
		"uv_index":            h.UVIndex,
	} {
		if len(arr) != n {
			return nil, fmt.Errorf("hourly %s has %d values for %d timestamps", name, len(arr), n)
		}
	}

	records := make([]models.WeatherRecord, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.Parse("2006-01-02T15:04", h.Time[i])
		if err != nil {
			return nil, fmt.Errorf("hourly timestamp %q: %w", h.Time[i], err)
		}
		w := models.WeatherScalars{
			Temperature:    h.Temperature[i],
			DewPoint:       h.DewPoint[i],
			Precipitation:  h.Precipitation[i],
			WindSpeed:      h.WindSpeed[i],
			CloudCover:     h.CloudCover[i],
			SolarRadiation: h.ShortwaveRadiation[i],
			UVIndex:        h.UVIndex[i],
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("hourly record %s: %w", h.Time[i], err)
		}
		records = append(records, models.WeatherRecord{
			Timestamp: ts.UTC(),
			Region:    region,
			Weather:   w,
		})
	}
	return records, nil
}
