package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/askql-systems/askql/internal/dedup"
	"github.com/askql-systems/askql/internal/fingerprint"
	"github.com/askql-systems/askql/internal/metrics"
	"github.com/askql-systems/askql/internal/orchestrator"
	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/pkg/types"
)

type askRequest struct {
	Prompt string `json:"prompt"`
}

type askResponse struct {
	QuestionID   string          `json:"questionId"`
	JobID        string          `json:"jobId"`
	Status       types.JobStatus `json:"status"`
	Deduplicated bool            `json:"deduplicated,omitempty"`
}

// AskQuestion accepts a free-text question and returns the job handling it.
// A prompt-fingerprint cache hit answers with the existing job instead of
// enqueueing a new one.
func (h *Handlers) AskQuestion(w http.ResponseWriter, r *http.Request) {
	metrics.QuestionsReceived.Add(1)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		h.writeError(w, http.StatusBadRequest, "prompt is required", nil)
		return
	}

	pfp := fingerprint.Prompt(prompt)

	entry, err := h.cache.GetByPrompt(r.Context(), pfp)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to check question cache", err)
		return
	}
	if entry != nil {
		job, jerr := h.store.GetJob(r.Context(), entry.JobID)
		switch {
		case jerr == nil:
			metrics.PromptCacheHits.Add(1)
			_ = json.NewEncoder(w).Encode(askResponse{
				QuestionID:   entry.QuestionID,
				JobID:        entry.JobID,
				Status:       job.Status(),
				Deduplicated: true,
			})
			return
		case errors.Is(jerr, provider.ErrNotFound):
			// Stale cache entry pointing at a purged job; fall through and ask fresh.
		default:
			h.writeError(w, http.StatusInternalServerError, "failed to look up cached job", jerr)
			return
		}
	}

	now := time.Now().UTC()
	question := types.Question{
		ID: ulid.Make().String(),
		// The job id is a pure function of the fingerprint, so the linkage
		// can be recorded before the job record exists.
		JobID:     orchestrator.JobID(orchestrator.AskJobType, pfp),
		Prompt:    prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateQuestion(r.Context(), question); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to record question", err)
		return
	}

	job, created, err := h.orch.CreateOrFind(r.Context(), orchestrator.AskJobType, pfp, orchestrator.AskPayload{
		QuestionID:        question.ID,
		Prompt:            prompt,
		PromptFingerprint: pfp,
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to enqueue question", err)
		return
	}

	// Conditional put: the first request through keeps its entry, a racing
	// duplicate leaves the winner's pointer in place.
	if _, err := h.cache.SetByPromptIfAbsent(r.Context(), pfp, dedup.PromptEntry{
		JobID:      job.ID,
		QuestionID: question.ID,
	}); err != nil {
		h.logger.Error("failed to cache prompt fingerprint", "question", question.ID, "error", err)
	}

	if created {
		w.WriteHeader(http.StatusAccepted)
	}
	_ = json.NewEncoder(w).Encode(askResponse{
		QuestionID:   question.ID,
		JobID:        job.ID,
		Status:       job.Status(),
		Deduplicated: !created,
	})
}

// GetQuestion returns a single question record.
func (h *Handlers) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")
	question, err := h.store.GetQuestion(r.Context(), id)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "question not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to load question", err)
		return
	}
	_ = json.NewEncoder(w).Encode(question)
}
