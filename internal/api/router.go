package api

import (
	"net/http"

	"log/slog"

	"github.com/gridcast/gridcast/internal/auth"
	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/database"
)

// Repositories groups the database repositories the routes depend on.
type Repositories struct {
	Runs         *database.RunRepository
	Models       *database.ModelRepository
	Observations *database.ObservationRepository
	Jobs         *database.JobRepository
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, repos Repositories, trigger RunTrigger, authConfig config.AuthConfig, logger *slog.Logger) {
	forecastHandler := NewForecastHandler(repos.Runs, logger)
	runHandler := NewRunHandler(repos.Runs, trigger, logger)
	jobHandler := NewJobHandler(repos.Jobs, logger)
	observationHandler := NewObservationHandler(repos.Observations, logger)
	modelHandler := NewModelHandler(repos.Models, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	authMiddleware := auth.Middleware(authConfig)
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authMiddleware(h).ServeHTTP(w, r)
		}
	}

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", protected(authHandler.ValidateToken))

	// Forecast routes (public for reading)
	mux.HandleFunc("/api/forecasts", forecastHandler.ListForecasts)
	mux.HandleFunc("/api/forecasts/", forecastHandler.GetRegionForecasts)

	// Admin routes (require auth)
	mux.HandleFunc("/api/admin/runs", protected(runHandler.HandleRuns))
	mux.HandleFunc("/api/admin/runs/", protected(runHandler.HandleRunByID))
	mux.HandleFunc("/api/admin/jobs", protected(jobHandler.HandleJobs))
	mux.HandleFunc("/api/admin/jobs/", protected(jobHandler.HandleJobByID))
	mux.HandleFunc("/api/admin/observations", protected(observationHandler.HandleObservations))
	mux.HandleFunc("/api/admin/observations/", protected(observationHandler.HandleObservations))
	mux.HandleFunc("/api/admin/models", protected(modelHandler.ListModels))
	mux.HandleFunc("/api/admin/models/", protected(modelHandler.GetModel))
}
