package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/face-attend/internal/capture"
	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/verify"
	"github.com/kozaktomas/face-attend/internal/web/middleware"
)

// Deps are the collaborators the API surface exposes. The orchestrator owns
// the verification semantics; the server only routes events into it.
type Deps struct {
	Orchestrator *verify.Orchestrator
	Sessions     store.SessionRepository
	Profiles     store.ProfileRepository
	Records      store.AttendanceRepository
	Detector     capture.FaceCapability
	Index        *store.ProfileIndex
	// Registry backs the /metrics endpoint. Optional; nil disables it.
	Registry *prometheus.Registry
}

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, port int, host string, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		router: r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS())

	// Set up routes
	s.setupRoutes(deps)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
