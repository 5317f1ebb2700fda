package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"nc-warden.io/warden/internal/api/handlers"
	"nc-warden.io/warden/internal/pkg/logger"
)

// RunServer runs serve mode until ctx is cancelled or the listener
// fails, then drains in-flight requests within the configured shutdown
// timeout.
func (a *Application) RunServer(ctx context.Context) error {
	server := handlers.NewServer(handlers.ServerDeps{
		Session:  a.Manager,
		Ctrl:     a.Ctrl,
		Groups:   a.Groups,
		Resolver: a.Resolver,
		Executor: a.Executor,
	})

	router, err := NewRouter(a.Config, server)
	if err != nil {
		return err
	}

	if a.Config.Server.AuthTokenHash == "" {
		logger.Warn("server.auth_token_hash is empty; the API accepts unauthenticated requests")
	}

	srv := &http.Server{
		Addr:         a.Config.Server.Listen,
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("Shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
