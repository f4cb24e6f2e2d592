// Package api provides the HTTP server for Focal.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/focal-ai/focal/internal/app/ledger"
	"github.com/focal-ai/focal/internal/app/refine"
	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/observability"
)

// Server is the Focal HTTP API server.
type Server struct {
	ledger   *ledger.Ledger
	ideas    domain.IdeaStore
	refine   *refine.Service
	verifier domain.TokenVerifier

	metricsEnabled bool
	corsOrigins    []string
	requestTimeout time.Duration
}

// NewServer creates a new API server.
func NewServer(l *ledger.Ledger, ideas domain.IdeaStore, rs *refine.Service, verifier domain.TokenVerifier) *Server {
	return &Server{
		ledger:         l,
		ideas:          ideas,
		refine:         rs,
		verifier:       verifier,
		corsOrigins:    []string{"http://localhost:3000"},
		requestTimeout: 5 * time.Minute,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetCORSOrigins replaces the allowed browser origins.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// SetRequestTimeout bounds every request, including a full refinement.
func (s *Server) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		s.requestTimeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(traceIDMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/personas", s.handlePersonas)

		r.Group(func(r chi.Router) {
			r.Use(s.optionalAuth)
			r.Get("/history", s.handleHistory)
			r.Get("/idea/{id}", s.handleIdea)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/refine", s.handleRefine)
			r.Get("/users/me", s.handleMe)
			r.Get("/users/me/transactions", s.handleTransactions)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// traceIDMiddleware carries chi's request ID into spans.
func traceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error types reported to clients.
const (
	errValidation   = "validation_error"
	errInsufficient = "insufficient_credits"
	errUpstream     = "upstream_error"
	errNotFound     = "not_found"
	errUnauthorized = "unauthorized"
	errInternal     = "internal_error"
)

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    typ,
		},
	})
}

// writeDomainError maps err onto a status and error type.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ic *domain.InsufficientCreditsError
	var ue *domain.UpstreamError
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, errValidation, err.Error())
	case errors.As(err, &ic):
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error": map[string]interface{}{
				"message":   ic.Error(),
				"type":      errInsufficient,
				"required":  ic.Required,
				"available": ic.Available,
			},
		})
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, errUnauthorized, "authorization required")
	case errors.Is(err, domain.ErrIdeaNotFound), errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, errNotFound, err.Error())
	case errors.As(err, &ue):
		log.Printf("[api] %s %s: %v (req=%s)", r.Method, r.URL.Path, err, middleware.GetReqID(r.Context()))
		writeError(w, http.StatusBadGateway, errUpstream, "generation service failed; credits were refunded")
	default:
		log.Printf("[api] %s %s: %v (req=%s)", r.Method, r.URL.Path, err, middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, errInternal, "internal error")
	}
}
