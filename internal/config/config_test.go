package config

import (
	"os"
	"testing"
	"time"

	"log/slog"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Errorf("expected default read timeout %v, got %v", defaultReadTimeout, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != defaultShutdownTimeout {
		t.Errorf("expected default shutdown timeout %v, got %v", defaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Logging.Format != defaultLogFormat {
		t.Errorf("expected default log format %q, got %q", defaultLogFormat, cfg.Logging.Format)
	}
	if cfg.Engine.Model != defaultModel {
		t.Errorf("expected default model %q, got %q", defaultModel, cfg.Engine.Model)
	}
	if cfg.Engine.BlendRatio != defaultBlendRatio {
		t.Errorf("expected default blend ratio %v, got %v", defaultBlendRatio, cfg.Engine.BlendRatio)
	}
	if cfg.Engine.TempTolerance != defaultTempTolerance {
		t.Errorf("expected default temperature tolerance %v, got %v", defaultTempTolerance, cfg.Engine.TempTolerance)
	}
	if cfg.Engine.ModelSeed != defaultModelSeed {
		t.Errorf("expected default model seed %d, got %d", defaultModelSeed, cfg.Engine.ModelSeed)
	}
	if cfg.Engine.MinTrainingSamples != defaultMinTrainingSamples {
		t.Errorf("expected default min training samples %d, got %d", defaultMinTrainingSamples, cfg.Engine.MinTrainingSamples)
	}
	if cfg.Engine.ScalePercent != 0 {
		t.Errorf("expected zero default scale percent, got %v", cfg.Engine.ScalePercent)
	}
	if cfg.Database.MaxConnections != defaultMaxConnections {
		t.Errorf("expected default max connections %d, got %d", defaultMaxConnections, cfg.Database.MaxConnections)
	}
	if cfg.Database.MaxIdleConnections != defaultMaxIdleConnections {
		t.Errorf("expected default max idle connections %d, got %d", defaultMaxIdleConnections, cfg.Database.MaxIdleConnections)
	}
	if cfg.Auth.JWTSecret != InsecureJWTSecret {
		t.Errorf("expected insecure default secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenDuration != defaultTokenDuration {
		t.Errorf("expected default token duration %v, got %v", defaultTokenDuration, cfg.Auth.TokenDuration)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                     "9090",
		"SERVER_READ_TIMEOUT_SECONDS":     "30",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "45",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "15",
		"LOG_LEVEL":                       "debug",
		"LOG_FORMAT":                      "text",
		"DATABASE_URL":                    "postgres://gridcast@localhost/gridcast",
		"DATABASE_MAX_CONNECTIONS":        "25",
		"GRIDCAST_MODEL":                  "boosted",
		"GRIDCAST_SCALE_PERCENT":          "5",
		"GRIDCAST_GROWTH_PERCENT":         "2.5",
		"GRIDCAST_BLEND_RATIO":            "0.3",
		"GRIDCAST_TEMP_TOLERANCE":         "2",
		"GRIDCAST_MODEL_SEED":             "7",
		"GRIDCAST_MIN_TRAINING_SAMPLES":   "500",
		"GRIDCAST_REGIONS_FILE":           "/etc/gridcast/regions.yaml",
		"ADMIN_JWT_SECRET":                "prod-secret",
		"ADMIN_PASSWORD":                  "prod-pass",
		"ADMIN_TOKEN_TTL_HOURS":           "8",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != overrides["SERVER_PORT"] {
		t.Errorf("expected overridden port %q, got %q", overrides["SERVER_PORT"], cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout %v, got %v", 30*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("expected write timeout %v, got %v", 45*time.Second, cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("expected shutdown timeout %v, got %v", 15*time.Second, cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected log level %v, got %v", slog.LevelDebug, cfg.Logging.Level)
	}
	if cfg.Logging.Format != overrides["LOG_FORMAT"] {
		t.Errorf("expected log format %q, got %q", overrides["LOG_FORMAT"], cfg.Logging.Format)
	}
	if cfg.Database.URL != overrides["DATABASE_URL"] {
		t.Errorf("expected database URL %q, got %q", overrides["DATABASE_URL"], cfg.Database.URL)
	}
	if cfg.Database.MaxConnections != 25 {
		t.Errorf("expected max connections 25, got %d", cfg.Database.MaxConnections)
	}
	if cfg.Engine.Model != "boosted" {
		t.Errorf("expected model %q, got %q", "boosted", cfg.Engine.Model)
	}
	if cfg.Engine.ScalePercent != 5 {
		t.Errorf("expected scale percent 5, got %v", cfg.Engine.ScalePercent)
	}
	if cfg.Engine.GrowthPercent != 2.5 {
		t.Errorf("expected growth percent 2.5, got %v", cfg.Engine.GrowthPercent)
	}
	if cfg.Engine.BlendRatio != 0.3 {
		t.Errorf("expected blend ratio 0.3, got %v", cfg.Engine.BlendRatio)
	}
	if cfg.Engine.TempTolerance != 2 {
		t.Errorf("expected temperature tolerance 2, got %v", cfg.Engine.TempTolerance)
	}
	if cfg.Engine.ModelSeed != 7 {
		t.Errorf("expected model seed 7, got %d", cfg.Engine.ModelSeed)
	}
	if cfg.Engine.MinTrainingSamples != 500 {
		t.Errorf("expected min training samples 500, got %d", cfg.Engine.MinTrainingSamples)
	}
	if cfg.Engine.RegionsFile != overrides["GRIDCAST_REGIONS_FILE"] {
		t.Errorf("expected regions file %q, got %q", overrides["GRIDCAST_REGIONS_FILE"], cfg.Engine.RegionsFile)
	}
	if cfg.Auth.JWTSecret != overrides["ADMIN_JWT_SECRET"] {
		t.Errorf("expected JWT secret %q, got %q", overrides["ADMIN_JWT_SECRET"], cfg.Auth.JWTSecret)
	}
	if cfg.Auth.AdminPassword != overrides["ADMIN_PASSWORD"] {
		t.Errorf("expected admin password %q, got %q", overrides["ADMIN_PASSWORD"], cfg.Auth.AdminPassword)
	}
	if cfg.Auth.TokenDuration != 8*time.Hour {
		t.Errorf("expected token duration %v, got %v", 8*time.Hour, cfg.Auth.TokenDuration)
	}
}

func TestLoadPartialOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SERVER_READ_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected overridden read timeout %v, got %v", 5*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SERVER_READ_TIMEOUT_SECONDS":     "-1",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "abc",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "3.5",
		"LOG_LEVEL":                       "verbose",
		"LOG_FORMAT":                      "xml",
		"DATABASE_MAX_CONNECTIONS":        "0",
		"GRIDCAST_MODEL":                  "oracle",
		"GRIDCAST_SCALE_PERCENT":          "lots",
		"GRIDCAST_BLEND_RATIO":            "1.5",
		"GRIDCAST_TEMP_TOLERANCE":         "-1",
		"GRIDCAST_MODEL_SEED":             "abc",
		"GRIDCAST_MIN_TRAINING_SAMPLES":   "-168",
		"ADMIN_TOKEN_TTL_HOURS":           "0",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s=%q", key, value)
			}
		})
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	tests := map[string]slog.Level{
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
	}

	for input, expected := range tests {
		level, err := parseLogLevel(input)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) returned error: %v", input, err)
		}

		if level != expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, level, expected)
		}
	}
}

func TestParseSecondsRejectsInvalidInput(t *testing.T) {
	cases := []string{"-1", "abc"}

	for _, input := range cases {
		if _, err := parseSeconds(input); err == nil {
			t.Fatalf("expected error for input %q", input)
		}
	}
}

func TestLoadDoesNotPersistEnvBetweenRuns(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("SERVER_READ_TIMEOUT_SECONDS", "5")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Unsetenv("SERVER_READ_TIMEOUT_SECONDS"); err != nil {
		t.Fatalf("failed to unset env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Errorf("expected default read timeout after reset, got %v", cfg.Server.ReadTimeout)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SERVER_PORT",
		"SERVER_READ_TIMEOUT_SECONDS",
		"SERVER_WRITE_TIMEOUT_SECONDS",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"DATABASE_MAX_CONNECTIONS",
		"DATABASE_MAX_IDLE_CONNECTIONS",
		"GRIDCAST_MODEL",
		"GRIDCAST_SCALE_PERCENT",
		"GRIDCAST_GROWTH_PERCENT",
		"GRIDCAST_BLEND_RATIO",
		"GRIDCAST_TEMP_TOLERANCE",
		"GRIDCAST_MODEL_SEED",
		"GRIDCAST_MIN_TRAINING_SAMPLES",
		"GRIDCAST_REGIONS_FILE",
		"ADMIN_JWT_SECRET",
		"ADMIN_PASSWORD",
		"ADMIN_PASSWORD_HASH",
		"ADMIN_TOKEN_TTL_HOURS",
	}

	for _, key := range keys {
		t.Setenv(key, "")
	}
}
