package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dmxbridge "github.com/nerrad567/gray-logic-dmx/internal/bridges/dmx"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Route("/dmx", func(r chi.Router) {
			r.Get("/", s.handleGetLevels)
			r.Put("/", s.handleSetLevels)
		})

		r.Post("/rdm", s.handleRDMRequest)
		r.Post("/discovery/{op}", s.handleDiscovery)

		r.Route("/responders", func(r chi.Router) {
			r.Get("/", s.handleListResponders)
			r.Route("/{uid}", func(r chi.Router) {
				r.Get("/", s.handleGetResponder)
				r.Delete("/", s.handleDeleteResponder)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports the bridge status. An unhealthy engine answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, reason := s.controller.Health()

	code := http.StatusOK
	if status == dmxbridge.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":   status,
		"version":  s.version,
		"universe": s.controller.Universe(),
	}
	if reason != "" {
		body["reason"] = reason
	}
	writeJSON(w, code, body)
}
