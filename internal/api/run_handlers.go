package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/models"
)

// RunTrigger starts a forecast run synchronously and returns its report.
type RunTrigger interface {
	Trigger(ctx context.Context, req models.TriggerRunRequest) (*models.RunReport, error)
}

// RunHandler handles forecast run requests
type RunHandler struct {
	runRepo *database.RunRepository
	trigger RunTrigger
	logger  *slog.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runRepo *database.RunRepository, trigger RunTrigger, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runRepo: runRepo,
		trigger: trigger,
		logger:  logger,
	}
}

// HandleRuns handles GET and POST /api/admin/runs
func (h *RunHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listRuns(w, r)
	case http.MethodPost:
		h.triggerRun(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RunHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runRepo.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *RunHandler) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req models.TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := ValidateTriggerRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.trigger.Trigger(r.Context(), req)
	if err != nil {
		h.logger.Error("forecast run failed", "model", req.Model, "error", err)
		http.Error(w, "Forecast run failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("forecast run completed",
		"run_id", report.RunID,
		"model", report.Model,
		"results", len(report.Results),
		"duration", report.Duration,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(report)
}

// HandleRunByID handles GET and DELETE /api/admin/runs/:id plus
// GET /api/admin/runs/:id/results.
func (h *RunHandler) HandleRunByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/admin/runs/:id[/results]
	if len(parts) < 4 {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}
	runID := parts[3]

	if len(parts) == 5 && parts[4] == "results" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.getRunResults(w, r, runID)
		return
	}
	if len(parts) != 4 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		h.deleteRun(w, r, runID)
		return
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	run, err := h.runRepo.GetRun(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "id", runID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(run)
}

func (h *RunHandler) deleteRun(w http.ResponseWriter, r *http.Request, runID string) {
	deleted, err := h.runRepo.DeleteRun(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to delete run", "id", runID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RunHandler) getRunResults(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := h.runRepo.GetRun(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "id", runID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	results, err := h.runRepo.ListResults(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to list run results", "id", runID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":  runID,
		"results": results,
		"count":   len(results),
	})
}
