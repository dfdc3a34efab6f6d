package server

import (
	"expvar"

	"github.com/go-chi/chi/v5"

	"github.com/askql-systems/askql/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.orch, s.store, s.kv, s.cache, s.relay)

	r.Route("/api", func(r chi.Router) {
		// Health
		r.Get("/health", h.Health)

		// Questions
		r.Post("/questions", h.AskQuestion)
		r.Get("/questions/{questionID}", h.GetQuestion)

		// Jobs
		r.Get("/jobs/{jobID}", h.GetJob)
		r.Get("/jobs/{jobID}/stream", h.StreamJob)
	})

	r.Handle("/debug/vars", expvar.Handler())
}
