package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/models"
)

// JobHandler handles scheduled forecast job requests
type JobHandler struct {
	jobRepo *database.JobRepository
	logger  *slog.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobRepo *database.JobRepository, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobRepo: jobRepo,
		logger:  logger,
	}
}

// HandleJobs handles GET and POST /api/admin/jobs
func (h *JobHandler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listJobs(w, r)
	case http.MethodPost:
		h.createJob(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JobHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobRepo.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (h *JobHandler) createJob(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := ValidateJobRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.jobRepo.CreateJob(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to create job", "name", req.Name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("forecast job created", "id", job.ID, "name", job.Name, "model", job.Model)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// HandleJobByID handles GET, PUT and DELETE /api/admin/jobs/:id plus
// PUT /api/admin/jobs/:id/schedule.
func (h *JobHandler) HandleJobByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/admin/jobs/:id[/schedule]
	if len(parts) < 4 {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[3]

	if len(parts) == 5 && parts[4] == "schedule" {
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.updateSchedule(w, r, jobID)
		return
	}
	if len(parts) != 4 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getJob(w, r, jobID)
	case http.MethodPut:
		h.updateJob(w, r, jobID)
	case http.MethodDelete:
		h.deleteJob(w, r, jobID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JobHandler) getJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.jobRepo.GetJob(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get job", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(job)
}

func (h *JobHandler) updateJob(w http.ResponseWriter, r *http.Request, id string) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := ValidateJobRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.jobRepo.UpdateJob(r.Context(), id, req)
	if err != nil {
		h.logger.Error("failed to update job", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(job)
}

// ScheduleRequest updates a job's schedule state.
type ScheduleRequest struct {
	ScheduleEnabled  bool `json:"schedule_enabled"`
	ScheduleInterval int  `json:"schedule_interval"`
}

func (h *JobHandler) updateSchedule(w http.ResponseWriter, r *http.Request, id string) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ScheduleEnabled && req.ScheduleInterval < 5 {
		http.Error(w, "schedule_interval: must be at least 5 minutes when the schedule is enabled", http.StatusBadRequest)
		return
	}

	job, err := h.jobRepo.SetSchedule(r.Context(), id, req.ScheduleEnabled, req.ScheduleInterval)
	if err != nil {
		h.logger.Error("failed to update job schedule", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	h.logger.Info("job schedule updated", "id", id, "enabled", req.ScheduleEnabled, "interval_minutes", req.ScheduleInterval)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(job)
}

func (h *JobHandler) deleteJob(w http.ResponseWriter, r *http.Request, id string) {
	deleted, err := h.jobRepo.DeleteJob(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete job", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
