// Package server exposes the claim analyzer over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/claimlens/claimlens/internal/auth"
	"github.com/claimlens/claimlens/internal/batch"
	"github.com/claimlens/claimlens/internal/claims"
	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/metrics"
	"github.com/claimlens/claimlens/internal/redact"
)

// Analyzer is satisfied by *claims.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*claims.AnalysisResult, error)
}

// Server is the HTTP API.
type Server struct {
	cfg      config.ServerConfig
	analyzer Analyzer
	runner   *batch.Runner
	metrics  *metrics.Collector
	auth     *auth.Auth
	version  string
	router   *chi.Mux
}

// New wires routes. m may be nil, in which case /metrics is not mounted.
func New(cfg *config.Config, a Analyzer, m *metrics.Collector, version string) (*Server, error) {
	authz, err := auth.NewFromConfig(cfg.Server)
	if err != nil {
		return nil, err
	}
	if !authz.Enabled() {
		redact.Logf("no API clients configured; /v1 routes are unauthenticated")
	}
	s := &Server{
		cfg:      cfg.Server,
		analyzer: a,
		metrics:  m,
		auth:     authz,
		version:  version,
		runner: batch.NewRunner(a, batch.Options{
			Workers:  cfg.Batch.Workers,
			Limiter:  batch.NewLimiter(cfg.Batch.RequestsPerSecond, cfg.Batch.Burst),
			Recorder: m,
		}),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(traceContext)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/v1/analyze", s.handleAnalyze)
		r.Post("/v1/analyze/batch", s.handleAnalyzeBatch)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		redact.Logf("claimlens API running on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.requestTimeout()+5*time.Second)
		defer cancel()
		redact.Logf("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.cfg.RequestTimeoutSeconds) * time.Second
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
