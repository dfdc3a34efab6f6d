package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/pkg/types"
)

// jobView is the external job representation with the derived status.
type jobView struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Status       types.JobStatus  `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	FinishedAt   *time.Time       `json:"finishedAt,omitempty"`
	Error        string           `json:"error,omitempty"`
	Deduplicated bool             `json:"deduplicated,omitempty"`
	Result       *types.JobResult `json:"result,omitempty"`
}

func viewOf(job *types.Job) jobView {
	return jobView{
		ID:           job.ID,
		Type:         job.Type,
		Status:       job.Status(),
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		Error:        job.FailureReason,
		Deduplicated: job.Deduplicated,
		Result:       job.Result,
	}
}

// GetJob returns the derived status of a job, with the result once terminal.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to load job", err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(job))
}
