package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/keyguard/internal/app"
)

const shutdownTimeout = 15 * time.Second

type server interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RunServer provisions the data key, then serves the status API (and metrics when
// enabled) until SIGINT or SIGTERM. Provisioning first means a broken keystore stops the
// process before it reports ready.
func RunServer(ctx context.Context, container *app.Container, version string) error {
	logger := container.Logger()
	gin.SetMode(container.Config().GetGinMode())
	logger.Info("starting server", slog.String("version", version))

	envelopeUseCase, err := container.EnvelopeUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize envelope use case: %w", err)
	}
	dataKey, err := envelopeUseCase.ObtainDataKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to provision data key: %w", err)
	}
	dataKey.Destroy()

	apiServer, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	servers := []server{apiServer}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, len(servers))
	for _, s := range servers {
		go func() {
			if err := s.Start(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	var errs []error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		errs = append(errs, err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
