package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/talevoice/backend/internal/queue"
	"github.com/talevoice/backend/internal/track"
)

type JobsHandler struct {
	dispatcher *queue.Dispatcher
	tracker    *track.Store
}

func NewJobsHandler(d *queue.Dispatcher, t *track.Store) *JobsHandler {
	return &JobsHandler{dispatcher: d, tracker: t}
}

type submitRequest struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority,omitempty"`
	DedupeKey string          `json:"dedupe_key,omitempty"`
}

// Submit accepts a job and returns its id. Re-submitting the same
// dedupe key returns the existing job's id.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Type == "" || len(req.Payload) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type and payload required"})
		return
	}

	jobID, err := h.dispatcher.Submit(r.Context(), queue.TaskType(req.Type), req.Payload, queue.SubmitOptions{
		Priority:  req.Priority,
		DedupeKey: req.DedupeKey,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// Get returns the job's tracked record.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	rec, err := h.tracker.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Remove cancels a job best-effort.
func (h *JobsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if !h.dispatcher.Remove(r.Context(), jobID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "removed": true})
}
