// Package daemon serves the learning engine over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/config"
	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/google/uuid"
)

// Version is reported by the status endpoint.
const Version = "0.1.0"

// LearnerIDHeader carries the authenticated learner.
const LearnerIDHeader = "X-Learner-ID"

// Server represents the CyberQuest daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	server  *http.Server
	router  *http.ServeMux
	engine  *engine.Service
	limiter ratelimit.RateLimiter
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config *config.LocalConfig
	Engine *engine.Service
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}

	s := &Server{
		cfg:    cfg.Config,
		router: http.NewServeMux(),
		engine: cfg.Engine,
	}

	if rate := cfg.Config.Daemon.RateLimit; rate > 0 {
		burst := cfg.Config.Daemon.RateBurst
		if burst < rate {
			burst = rate
		}
		s.limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    burst,
			Interval: time.Second,
		})
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Progress
	s.router.HandleFunc("GET /v1/difficulty/{exercise_id}", s.handleDifficulty)
	s.router.HandleFunc("POST /v1/progress", s.handleSubmitProgress)
	s.router.HandleFunc("POST /v1/exercises/{exercise_id}/start", s.handleStartExercise)
	s.router.HandleFunc("DELETE /v1/progress/{exercise_id}", s.handleResetProgress)
	s.router.HandleFunc("GET /v1/summary", s.handleSummary)
	s.router.HandleFunc("GET /v1/stats", s.handleStats)

	// Actions & achievements
	s.router.HandleFunc("POST /v1/actions", s.handleLogAction)
	s.router.HandleFunc("GET /v1/achievements", s.handleAchievements)

	// Recommendations
	s.router.HandleFunc("GET /v1/recommendations", s.handleListRecommendations)
	s.router.HandleFunc("POST /v1/recommendations/{id}/action", s.handleRecommendationAction)
	s.router.HandleFunc("GET /v1/next-activity", s.handleNextActivity)

	// Preferences
	s.router.HandleFunc("GET /v1/preferences", s.handleGetPreferences)
	s.router.HandleFunc("PATCH /v1/preferences", s.handleUpdatePreferences)

	// Analytics
	s.router.HandleFunc("GET /v1/patterns", s.handlePatterns)
	s.router.HandleFunc("GET /v1/hint", s.handleHint)
	s.router.HandleFunc("GET /v1/skills", s.handleSkills)
	s.router.HandleFunc("GET /v1/tutorial/{type}", s.handleTutorial)
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.limiter != nil {
		h = rateLimitMiddleware(s.limiter, h)
	}
	return correlationIDMiddleware(recoveryMiddleware(loggingMiddleware(h)))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting cyberquest daemon",
		"addr", s.server.Addr,
		"storage", s.cfg.Storage.Driver,
		"queue", s.cfg.Queue.Enabled,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	if s.limiter != nil {
		if err := s.limiter.Close(); err != nil {
			slog.Warn("failed to close rate limiter", "error", err)
		}
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "degraded",
			"details": err.Error(),
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":      "running",
		"version":     Version,
		"storage":     s.cfg.Storage.Driver,
		"queue":       s.cfg.Queue.Enabled,
		"resilience":  s.cfg.Resilience.Enabled,
		"tier_policy": s.cfg.Learning.TierPolicy,
	})
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// engineError maps an engine error to a response status
func (s *Server) engineError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(message, "correlation_id", GetCorrelationID(r.Context()), "error", err)
	}
	s.jsonError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// learnerID reads the learner from the request header
func learnerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(LearnerIDHeader)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError("learner_id", LearnerIDHeader+" header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, domain.NewValidationError("learner_id", "must be a UUID")
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return nil
}
