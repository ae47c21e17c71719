package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/gridcast/gridcast/internal/api"
	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/features"
	"github.com/gridcast/gridcast/internal/forecaster"
	"github.com/gridcast/gridcast/internal/logging"
	"github.com/gridcast/gridcast/internal/metrics"
	"github.com/gridcast/gridcast/internal/scheduler"
	"github.com/gridcast/gridcast/internal/server"
	"github.com/gridcast/gridcast/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting gridcast")

	ctx := context.Background()

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(ctx, db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	runRepo := database.NewRunRepository(db)
	modelRepo := database.NewModelRepository(db)
	obsRepo := database.NewObservationRepository(db)
	jobRepo := database.NewJobRepository(db)

	// Region calendar
	calendar := features.DefaultCalendar()
	if cfg.Engine.RegionsFile != "" {
		calendar, err = features.LoadCalendar(cfg.Engine.RegionsFile)
		if err != nil {
			logger.Error("failed to load regions file", "path", cfg.Engine.RegionsFile, "error", err)
			os.Exit(1)
		}
		logger.Info("regions loaded", "path", cfg.Engine.RegionsFile, "count", len(calendar.Regions()))
	} else {
		logger.Warn("GRIDCAST_REGIONS_FILE not set, forecast runs will fail until regions are configured")
	}

	// Metrics
	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	engineCollector, err := metrics.NewEngineCollector(collector.Registry())
	if err != nil {
		logger.Error("failed to init engine metrics", "error", err)
		os.Exit(1)
	}

	// Weather client with local cache
	weatherCache, err := weather.OpenCache(cfg.Weather.CachePath)
	if err != nil {
		logger.Error("failed to open weather cache", "path", cfg.Weather.CachePath, "error", err)
		os.Exit(1)
	}
	defer weatherCache.Close()
	if err := weatherCache.Cleanup(90 * 24 * time.Hour); err != nil {
		logger.Warn("weather cache cleanup failed", "error", err)
	}
	weatherClient := weather.NewClient(cfg.Weather.BaseURL, weatherCache, logger)

	// Forecast service and runner
	service := forecaster.NewService(calendar, logger, engineCollector).WithStores(runRepo, modelRepo)
	runner := scheduler.NewRunner(obsRepo, weatherClient, service, calendar, cfg.Engine, logger)

	// Scheduled jobs
	jobScheduler := scheduler.NewJobScheduler(jobRepo, runner, logger)
	schedulerCtx, cancelScheduler := context.WithCancel(ctx)
	go jobScheduler.Start(schedulerCtx)

	// HTTP routes
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.HealthCheck(r.Context(), db); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"gridcast","status":"ready","version":"0.1.0"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	if cfg.Auth.JWTSecret == config.InsecureJWTSecret {
		logger.Warn("ADMIN_JWT_SECRET not set, using insecure default")
	}

	repos := api.Repositories{
		Runs:         runRepo,
		Models:       modelRepo,
		Observations: obsRepo,
		Jobs:         jobRepo,
	}
	api.SetupRoutes(mux, repos, runner, cfg.Auth, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("gridcast started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	cancelScheduler()
	jobScheduler.Stop()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
