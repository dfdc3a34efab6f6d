// Package handlers implements HTTP request handlers for the askql API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/askql-systems/askql/internal/dedup"
	"github.com/askql-systems/askql/internal/orchestrator"
	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/internal/relay"
)

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	orch   *orchestrator.Orchestrator
	store  provider.Store
	kv     provider.KV
	cache  *dedup.Cache
	relay  *relay.Relay
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(orch *orchestrator.Orchestrator, store provider.Store, kv provider.KV, cache *dedup.Cache, rel *relay.Relay) *Handlers {
	return &Handlers{
		orch:   orch,
		store:  store,
		kv:     kv,
		cache:  cache,
		relay:  rel,
		logger: slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
