// Package httpserver provides the HTTP REST API for the feedback dedup service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/feedback-dedup-service/internal/feedback"
)

// ReadinessChecker reports whether a backing dependency can serve traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	feedback   *feedback.Service
	checker    feedback.DuplicateChecker
	readiness  ReadinessChecker
	metrics    http.Handler
	metricsAt  string
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath is where MetricsHandler is mounted. Empty means /metrics.
	MetricsPath string
}

// Dependencies are the collaborators the handlers call.
type Dependencies struct {
	Feedback *feedback.Service
	Checker  feedback.DuplicateChecker
	// Readiness is nil for the in-memory backend.
	Readiness ReadinessChecker
	// MetricsHandler is nil when metrics exposure is disabled.
	MetricsHandler http.Handler
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	metricsAt := cfg.MetricsPath
	if metricsAt == "" {
		metricsAt = "/metrics"
	}

	s := &Server{
		feedback:  deps.Feedback,
		checker:   deps.Checker,
		readiness: deps.Readiness,
		metrics:   deps.MetricsHandler,
		metricsAt: metricsAt,
		logger:    logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	// Health and metrics endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, s.metricsAt, s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)
		r.Use(submitterMiddleware)
		r.Use(s.requestLogger)

		r.Post("/duplicates/check", s.checkDuplicates)
		r.Post("/similarity/score", s.scoreSimilarity)

		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.getPolicy)
			r.Patch("/", s.updatePolicy)
			r.Post("/reset", s.resetPolicy)
			r.Post("/adjust", s.adjustPolicy)
		})

		r.Get("/comparison-logs", s.listComparisonLogs)
		r.Post("/comparison-logs/{logID}/actions", s.recordUserAction)

		r.Route("/feedback", func(r chi.Router) {
			r.Get("/", s.listFeedback)
			r.Post("/", s.submitFeedback)
			r.Get("/{feedbackID}", s.getFeedback)
			r.Patch("/{feedbackID}/status", s.updateStatus)
			r.Post("/{feedbackID}/vote", s.vote)
			r.Post("/{feedbackID}/mark-duplicate", s.markDuplicate)
			r.Post("/{feedbackID}/merge", s.merge)
		})

		r.Get("/metrics/duplicates", s.detectionMetrics)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the storage backend is reachable.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.readiness != nil {
		if err := s.readiness.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
