package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-fingerprint/internal/web/handlers"
)

func (s *Server) setupRoutes(fingerprints *handlers.FingerprintsHandler, search *handlers.SearchHandler) {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		r.Get("/algorithms", fingerprints.Algorithms)
		r.Post("/fingerprints", fingerprints.Compute)

		r.Post("/search", search.Search)
		r.Get("/stats", search.Stats)
	})
}
