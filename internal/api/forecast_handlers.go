package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gridcast/gridcast/internal/database"
)

// ForecastHandler serves the public forecast read endpoints backed by the
// most recent completed run.
type ForecastHandler struct {
	runRepo *database.RunRepository
	logger  *slog.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(runRepo *database.RunRepository, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{
		runRepo: runRepo,
		logger:  logger,
	}
}

// ListForecasts handles GET /api/forecasts
func (h *ForecastHandler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeForecasts(w, r, r.URL.Query().Get("region"))
}

// GetRegionForecasts handles GET /api/forecasts/:region
func (h *ForecastHandler) GetRegionForecasts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/forecasts/:region
	if len(parts) != 3 || parts[2] == "" {
		http.Error(w, "Region required", http.StatusBadRequest)
		return
	}

	h.writeForecasts(w, r, parts[2])
}

func (h *ForecastHandler) writeForecasts(w http.ResponseWriter, r *http.Request, region string) {
	results, err := h.runRepo.LatestForecasts(r.Context(), region)
	if err != nil {
		h.logger.Error("failed to get latest forecasts", "region", region, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"forecasts": results,
		"count":     len(results),
	})
}
