package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/models"
)

// ObservationHandler handles bulk observation ingest requests
type ObservationHandler struct {
	obsRepo *database.ObservationRepository
	logger  *slog.Logger
}

// NewObservationHandler creates a new observation handler
func NewObservationHandler(obsRepo *database.ObservationRepository, logger *slog.Logger) *ObservationHandler {
	return &ObservationHandler{
		obsRepo: obsRepo,
		logger:  logger,
	}
}

// ObservationBatch is the combined ingest payload.
type ObservationBatch struct {
	Demand  []models.DemandRecord  `json:"demand"`
	Weather []models.WeatherRecord `json:"weather"`
}

// HandleObservations handles POST /api/admin/observations (combined batch)
// plus POST /api/admin/observations/demand and .../weather.
func (h *ObservationHandler) HandleObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/admin/observations[/:kind]
	switch {
	case len(parts) == 3:
		h.ingestBatch(w, r)
	case len(parts) == 4 && parts[3] == "demand":
		h.ingestDemand(w, r)
	case len(parts) == 4 && parts[3] == "weather":
		h.ingestWeather(w, r)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *ObservationHandler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var batch ObservationBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(batch.Demand) == 0 && len(batch.Weather) == 0 {
		http.Error(w, "No records provided", http.StatusBadRequest)
		return
	}

	if err := validateDemandRecords(batch.Demand); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateWeatherRecords(batch.Weather); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.obsRepo.UpsertDemand(r.Context(), batch.Demand); err != nil {
		h.logger.Error("failed to store demand observations", "count", len(batch.Demand), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := h.obsRepo.UpsertWeather(r.Context(), batch.Weather); err != nil {
		h.logger.Error("failed to store weather observations", "count", len(batch.Weather), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("observations stored", "demand", len(batch.Demand), "weather", len(batch.Weather))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"demand_stored":  len(batch.Demand),
		"weather_stored": len(batch.Weather),
	})
}

func (h *ObservationHandler) ingestDemand(w http.ResponseWriter, r *http.Request) {
	var records []models.DemandRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(records) == 0 {
		http.Error(w, "No records provided", http.StatusBadRequest)
		return
	}

	if err := validateDemandRecords(records); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.obsRepo.UpsertDemand(r.Context(), records); err != nil {
		h.logger.Error("failed to store demand observations", "count", len(records), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("demand observations stored", "count", len(records))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"stored": len(records)})
}

func (h *ObservationHandler) ingestWeather(w http.ResponseWriter, r *http.Request) {
	var records []models.WeatherRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(records) == 0 {
		http.Error(w, "No records provided", http.StatusBadRequest)
		return
	}

	if err := validateWeatherRecords(records); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.obsRepo.UpsertWeather(r.Context(), records); err != nil {
		h.logger.Error("failed to store weather observations", "count", len(records), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("weather observations stored", "count", len(records))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"stored": len(records)})
}

func validateDemandRecords(records []models.DemandRecord) error {
	for i, rec := range records {
		if strings.TrimSpace(rec.Region) == "" {
			return fmt.Errorf("demand record %d: region is required", i)
		}
		if rec.Timestamp.IsZero() {
			return fmt.Errorf("demand record %d: timestamp is required", i)
		}
		if rec.Demand < 0 {
			return fmt.Errorf("demand record %d: demand cannot be negative", i)
		}
	}
	return nil
}

func validateWeatherRecords(records []models.WeatherRecord) error {
	for i, rec := range records {
		if strings.TrimSpace(rec.Region) == "" {
			return fmt.Errorf("weather record %d: region is required", i)
		}
		if rec.Timestamp.IsZero() {
			return fmt.Errorf("weather record %d: timestamp is required", i)
		}
		if err := rec.Weather.Validate(); err != nil {
			return fmt.Errorf("weather record %d: %w", i, err)
		}
	}
	return nil
}
