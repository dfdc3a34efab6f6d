// Package server implements the askql HTTP API server.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/askql-systems/askql/internal/dedup"
	"github.com/askql-systems/askql/internal/orchestrator"
	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/internal/relay"
)

// maxBodyBytes bounds ask request bodies; prompts are short.
const maxBodyBytes = 1 << 20

// Server is the askql HTTP API server.
type Server struct {
	orch   *orchestrator.Orchestrator
	store  provider.Store
	kv     provider.KV
	cache  *dedup.Cache
	relay  *relay.Relay
	router chi.Router
	addr   string
	logger *slog.Logger
	srv    *http.Server
}

// New creates a new HTTP server.
func New(addr string, orch *orchestrator.Orchestrator, store provider.Store, kv provider.KV, cache *dedup.Cache, rel *relay.Relay) *Server {
	s := &Server{
		orch:   orch,
		store:  store,
		kv:     kv,
		cache:  cache,
		relay:  rel,
		addr:   addr,
		logger: slog.Default(),
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(MaxBodyMiddleware(maxBodyBytes))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router = r
	s.registerRoutes(r)
	return s
}

// SetLogger overrides the default logger.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		// Streams stay open well past a normal response; the write timeout
		// would sever them, so keep it unset and rely on the relay teardown.
		IdleTimeout: 120 * time.Second,
	}
	s.logger.Info("askql server listening", "addr", s.addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
