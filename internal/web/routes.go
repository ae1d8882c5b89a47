package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/face-attend/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	// Create handlers
	verifyHandler := handlers.NewVerifyHandler(deps.Orchestrator, s.config.Detector.MaxFrameSize)
	sessionsHandler := handlers.NewSessionsHandler(deps.Sessions, deps.Records)
	enrollHandler := handlers.NewEnrollHandler(deps.Profiles, deps.Detector, deps.Index,
		s.config.Verification.MatchThreshold, s.config.Detector.MaxFrameSize)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	if deps.Registry != nil {
		s.router.Method("GET", "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Verification pipeline
		r.Post("/verify/start", verifyHandler.Start)
		r.Get("/verify/{id}", verifyHandler.Status)
		r.Post("/verify/{id}/location", verifyHandler.Location)
		r.Post("/verify/{id}/liveness", verifyHandler.Liveness)
		r.Post("/verify/{id}/frame", verifyHandler.Frame)
		r.Post("/verify/{id}/confirm", verifyHandler.Confirm)
		r.Delete("/verify/{id}", verifyHandler.Cancel)

		// Instructor session management
		r.Post("/sessions", sessionsHandler.Create)
		r.Post("/sessions/{id}/close", sessionsHandler.Close)
		r.Get("/sessions/{id}/attendance", sessionsHandler.Attendance)

		// Enrollment
		r.Post("/enroll", enrollHandler.Enroll)
	})
}
