// Package server provides the HTTP API for analyzing, anonymizing and
// restoring text, plus read access to the run ledger.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
	"github.com/alacambra/presidio-anonymization/internal/entity"
	"github.com/alacambra/presidio-anonymization/internal/ledger"
	"github.com/alacambra/presidio-anonymization/internal/otel"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultMaxBodyBytes = 10 << 20
)

// Server holds all dependencies for the HTTP API.
type Server struct {
	router       *chi.Mux
	pool         *anonymizer.Pool
	defaults     entity.Options
	recorder     *ledger.Recorder
	ledger       *ledger.Store
	apiKeys      []string
	limiter      *RateLimiter
	maxBodyBytes int64
	startTime    time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithLedger records completed anonymizations and serves /v1/runs.
func WithLedger(store *ledger.Store) Option {
	return func(s *Server) {
		s.ledger = store
		if store != nil {
			s.recorder = ledger.NewRecorder(store)
		}
	}
}

// WithAPIKeys requires one of keys on every /v1 request. No keys disables
// authentication.
func WithAPIKeys(keys []string) Option {
	return func(s *Server) { s.apiKeys = keys }
}

// WithRateLimit caps /v1 traffic at rpm requests per minute across all
// callers. Zero disables the limit.
func WithRateLimit(rpm int) Option {
	return func(s *Server) { s.limiter = NewRateLimiter(rpm) }
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewServer builds a Server. pool provides detectors for every option set a
// request may ask for; defaults apply when a request does not override them.
func NewServer(pool *anonymizer.Pool, defaults entity.Options, opts ...Option) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		pool:         pool,
		defaults:     defaults,
		maxBodyBytes: defaultMaxBodyBytes,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler (chi router with all middleware
// and routes).
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())

	// Unauthenticated
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKeys))
		r.Use(RateLimitMiddleware(s.limiter))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Get("/v1/languages", s.handleLanguages)
		r.Get("/v1/entities", s.handleEntities)
		r.Post("/v1/analyze", s.handleAnalyze)
		r.Post("/v1/anonymize", s.handleAnonymize)
		r.Post("/v1/restore", s.handleRestore)

		if s.ledger != nil {
			r.Get("/v1/runs", s.handleRunsList)
			r.Get("/v1/runs/{id}", s.handleRunGet)
			r.Get("/v1/runs/{id}/verify", s.handleRunVerify)
		}
	})

	return r
}
