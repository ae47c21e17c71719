package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/models"
)

// ModelHandler serves stored linear model snapshots
type ModelHandler struct {
	modelRepo *database.ModelRepository
	logger    *slog.Logger
}

// NewModelHandler creates a new model handler
func NewModelHandler(modelRepo *database.ModelRepository, logger *slog.Logger) *ModelHandler {
	return &ModelHandler{
		modelRepo: modelRepo,
		logger:    logger,
	}
}

// ListModels handles GET /api/admin/models
func (h *ModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	snaps, err := h.modelRepo.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list model snapshots", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"models": snaps,
		"count":  len(snaps),
	})
}

// GetModel handles GET /api/admin/models/:id, where :id may be "latest".
func (h *ModelHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/admin/models/:id
	if len(parts) != 4 || parts[3] == "" {
		http.Error(w, "Model ID required", http.StatusBadRequest)
		return
	}
	id := parts[3]

	snap, err := h.lookup(r, id)
	if err != nil {
		h.logger.Error("failed to get model snapshot", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.Error(w, "Model not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snap)
}

func (h *ModelHandler) lookup(r *http.Request, id string) (*models.LinearSnapshot, error) {
	if id == "latest" {
		return h.modelRepo.LatestSnapshot(r.Context())
	}
	return h.modelRepo.GetSnapshot(r.Context(), id)
}
