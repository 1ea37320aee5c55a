package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/keyguard/internal/metrics"
)

// MetricsServer exposes /metrics on its own port so scrapes never compete with the status
// API's rate limiter and the port can stay off the public interface.
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer creates a MetricsServer for provider.
func NewMetricsServer(host string, port int, logger *slog.Logger, provider *metrics.Provider) *MetricsServer {
	router := gin.New()
	router.Use(gin.Recovery())
	metricsHandler := gin.WrapH(provider.Handler())
	router.GET("/metrics", metricsHandler)
	router.HEAD("/metrics", metricsHandler)

	return &MetricsServer{
		server: newHTTPServer(host, port, router),
		logger: logger,
	}
}

// GetHandler returns the router, for tests.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *MetricsServer) Start(ctx context.Context) error {
	return listenAndServe(s.server, s.logger, "metrics server")
}

// Shutdown drains in-flight scrapes.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.server.Shutdown(ctx)
}
