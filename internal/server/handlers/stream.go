package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/pkg/types"
)

var errSinkClosed = errors.New("push channel closed")

// sseSink adapts one SSE response stream to the relay's Sink interface.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newSSESink(w http.ResponseWriter, flusher http.Flusher) *sseSink {
	return &sseSink{w: w, flusher: flusher, done: make(chan struct{})}
}

func (s *sseSink) Send(update types.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// StreamJob opens an SSE push channel carrying status updates for one job.
// The current state is sent immediately; the connection closes shortly after
// a terminal update.
func (h *Handlers) StreamJob(w http.ResponseWriter, r *http.Request) {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newSSESink(w, flusher)
	h.relay.SetupConnection(job.ID, sink, updateFromJob(job))

	select {
	case <-sink.done:
	case <-r.Context().Done():
		// Client went away. Close only this sink; the relay deregisters it on
		// the next failed send, so a replacement subscriber is untouched.
		_ = sink.Close()
	}
}

// updateFromJob snapshots a stored job as the initial push record.
func updateFromJob(job *types.Job) types.JobUpdate {
	update := types.JobUpdate{JobID: job.ID, Status: job.Status()}
	switch update.Status {
	case types.JobCompleted:
		update.Result = job.Result
	case types.JobFailed:
		update.Error = job.FailureReason
	}
	return update
}
