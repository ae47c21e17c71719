package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/gridcast/gridcast/internal/config"
)

// Server wraps the forecast API's http.Server with the configured
// timeouts and graceful shutdown.
type Server struct {
	logger          *slog.Logger
	http            *http.Server
	shutdownTimeout time.Duration
}

// New builds a Server around the given handler. The idle timeout is
// derived from the read timeout since the API has no long-poll routes.
func New(cfg config.ServerConfig, logger *slog.Logger, handler http.Handler) *Server {
	return &Server{
		logger: logger,
		http: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  2 * cfg.ReadTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start serves HTTP traffic until Shutdown is called. A graceful close
// is not an error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.logger.Info("http server draining", "timeout", s.shutdownTimeout)
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
