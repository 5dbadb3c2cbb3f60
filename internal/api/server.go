package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/stockvaluation/backend/pkg/config"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// Server serves valuation reports over HTTP
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// the saga answers within SAGA_OVERALL_TIMEOUT; leave room for the write
			WriteTimeout: cfg.Saga.OverallTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: log.WithModule("server"),
		config: cfg,
	}
}

// Handler exposes the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Shutdown is called
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port":            s.config.Port,
		"env":             s.config.Env,
		"response_format": s.config.ResponseFormat,
		"cache_policy":    s.config.Cache.Policy,
	}).Info("Starting valuation API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
