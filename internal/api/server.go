// Package api provides the HTTP surface for charge screening and the
// rule/cache admin operations.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/metrics"
)

// Server is the HTTP server.
type Server struct {
	config  domain.ServerConfig
	handler *Handler
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(cfg domain.ServerConfig, handler *Handler) *Server {
	return &Server{
		config:  cfg,
		handler: handler,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RecoverMiddleware)
	r.Use(TracingMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handler.HandleHealth)
	r.Get("/ready", s.handler.HandleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/charges", s.handler.HandleScreenCharge)
		r.Get("/charges/{id}", s.handler.HandleGetCharge)
		r.Get("/charges/{id}/assessments", s.handler.HandleListChargeAssessments)

		r.Get("/assessments/{id}", s.handler.HandleGetAssessment)

		r.Get("/rules", s.handler.HandleListRules)
		r.Post("/rules/reload", s.handler.HandleReloadRules)

		r.Get("/explanations/cache", s.handler.HandleCacheStats)
		r.Delete("/explanations/cache", s.handler.HandleCacheClear)
		r.Get("/explanations/cache/entry", s.handler.HandleCachePeek)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	slog.Info("HTTP server starting", "addr", addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	slog.Info("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
