package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// Start runs the HTTP server until ctx is cancelled or an interrupt or
// terminate signal arrives, then shuts everything down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.Cfg.Watch {
		if err := s.watcher.Start(ctx); err != nil {
			slog.Warn("Module watcher not started", "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.E.Start(s.Cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server")
	case err := <-errCh:
		s.Shutdown(context.Background())
		return fmt.Errorf("shutting down the server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server, shuts providers down in reverse order and
// closes the watcher and event bus.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(
		s.E.Shutdown(ctx),
		s.Registry.Shutdown(ctx),
		s.watcher.Stop(),
		s.events.Close(),
	)
}
