package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Engine   EngineConfig
	Weather  WeatherConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds connection settings for the forecast store.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
}

// AuthConfig holds admin authentication settings. When AdminPasswordHash
// is set it takes precedence over the plaintext AdminPassword.
type AuthConfig struct {
	JWTSecret         string
	AdminPassword     string
	AdminPasswordHash string
	TokenDuration     time.Duration
}

// EngineConfig holds forecasting engine defaults. Individual runs may
// override these through the trigger request or job payload.
type EngineConfig struct {
	Model              string
	ScalePercent       float64
	GrowthPercent      float64
	BlendRatio         float64
	TempTolerance      float64
	ModelSeed          int64
	MinTrainingSamples int
	RegionsFile        string
}

// WeatherConfig points at the hourly forecast API and the local cache.
type WeatherConfig struct {
	BaseURL   string
	CachePath string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultMaxConnections     = 100
	defaultMaxIdleConnections = 10

	defaultAdminPassword = "admin"
	defaultTokenDuration = 24 * time.Hour

	defaultModel              = "linear"
	defaultBlendRatio         = 0.5
	defaultTempTolerance      = 5.0
	defaultModelSeed          = 42
	defaultMinTrainingSamples = 168

	defaultWeatherBaseURL   = "https://api.open-meteo.com"
	defaultWeatherCachePath = "data/weather.db"
)

// InsecureJWTSecret is the fallback token signing secret applied when
// ADMIN_JWT_SECRET is unset. Deployments must override it.
const InsecureJWTSecret = "change-this-secret"

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     defaultMaxConnections,
			MaxIdleConnections: defaultMaxIdleConnections,
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("ADMIN_JWT_SECRET", InsecureJWTSecret),
			AdminPassword:     getEnv("ADMIN_PASSWORD", defaultAdminPassword),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenDuration:     defaultTokenDuration,
		},
		Engine: EngineConfig{
			Model:              getEnv("GRIDCAST_MODEL", defaultModel),
			BlendRatio:         defaultBlendRatio,
			TempTolerance:      defaultTempTolerance,
			ModelSeed:          defaultModelSeed,
			MinTrainingSamples: defaultMinTrainingSamples,
			RegionsFile:        os.Getenv("GRIDCAST_REGIONS_FILE"),
		},
		Weather: WeatherConfig{
			BaseURL:   getEnv("WEATHER_API_URL", defaultWeatherBaseURL),
			CachePath: getEnv("WEATHER_CACHE_PATH", defaultWeatherCachePath),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("DATABASE_MAX_CONNECTIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATABASE_MAX_CONNECTIONS: %w", err)
		}
		cfg.Database.MaxConnections = n
	}

	if v := os.Getenv("DATABASE_MAX_IDLE_CONNECTIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATABASE_MAX_IDLE_CONNECTIONS: %w", err)
		}
		cfg.Database.MaxIdleConnections = n
	}

	if v := os.Getenv("ADMIN_TOKEN_TTL_HOURS"); v != "" {
		hours, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_TTL_HOURS: %w", err)
		}
		cfg.Auth.TokenDuration = time.Duration(hours) * time.Hour
	}

	switch cfg.Engine.Model {
	case "linear", "hybrid", "boosted":
	default:
		return Config{}, fmt.Errorf("invalid GRIDCAST_MODEL: must be one of linear, hybrid, boosted")
	}

	if v := os.Getenv("GRIDCAST_SCALE_PERCENT"); v != "" {
		f, err := parseFloat(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GRIDCAST_SCALE_PERCENT: %w", err)
		}
		cfg.Engine.ScalePercent = f
	}

	if v := os.Getenv("GRIDCAST_GROWTH_PERCENT"); v != "" {
		f, err := parseFloat(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GRIDCAST_GROWTH_PERCENT: %w", err)
		}
		cfg.Engine.GrowthPercent = f
	}

	if v := os.Getenv("GRIDCAST_BLEND_RATIO"); v != "" {
		f, err := parseFloat(v)
		if err != nil || f < 0 || f > 1 {
			return Config{}, fmt.Errorf("invalid GRIDCAST_BLEND_RATIO: must be between 0 and 1")
		}
		cfg.Engine.BlendRatio = f
	}

	if v := os.Getenv("GRIDCAST_TEMP_TOLERANCE"); v != "" {
		f, err := parseFloat(v)
		if err != nil || f < 0 {
			return Config{}, fmt.Errorf("invalid GRIDCAST_TEMP_TOLERANCE: must be a non-negative number")
		}
		cfg.Engine.TempTolerance = f
	}

	if v := os.Getenv("GRIDCAST_MODEL_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GRIDCAST_MODEL_SEED: must be an integer")
		}
		cfg.Engine.ModelSeed = n
	}

	if v := os.Getenv("GRIDCAST_MIN_TRAINING_SAMPLES"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GRIDCAST_MIN_TRAINING_SAMPLES: %w", err)
		}
		cfg.Engine.MinTrainingSamples = n
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("must be a number")
	}
	return f, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
