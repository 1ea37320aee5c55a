package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"

	cryptoUseCase "github.com/allisson/keyguard/internal/crypto/usecase"
	"github.com/allisson/keyguard/internal/metrics"
)

// Option configures optional middleware of the status server.
type Option func(*serverOptions)

type serverOptions struct {
	corsEnabled      bool
	corsAllowOrigins string

	rateLimitEnabled bool
	rateLimitRPS     float64
	rateLimitBurst   int

	meterProvider    metric.MeterProvider
	metricsNamespace string
}

// WithCORS enables CORS for a comma-separated origin list.
func WithCORS(enabled bool, allowOrigins string) Option {
	return func(o *serverOptions) {
		o.corsEnabled = enabled
		o.corsAllowOrigins = allowOrigins
	}
}

// WithRateLimit enables per-IP rate limiting.
func WithRateLimit(enabled bool, rps float64, burst int) Option {
	return func(o *serverOptions) {
		o.rateLimitEnabled = enabled
		o.rateLimitRPS = rps
		o.rateLimitBurst = burst
	}
}

// WithHTTPMetrics records request metrics on meterProvider.
func WithHTTPMetrics(meterProvider metric.MeterProvider, namespace string) Option {
	return func(o *serverOptions) {
		o.meterProvider = meterProvider
		o.metricsNamespace = namespace
	}
}

// Server is the status HTTP server.
type Server struct {
	server          *http.Server
	logger          *slog.Logger
	envelopeUseCase cryptoUseCase.EnvelopeUseCase
	limiters        *rateLimiterStore
	shuttingDown    atomic.Bool
}

// NewServer builds the server and its router.
func NewServer(
	host string,
	port int,
	logger *slog.Logger,
	envelopeUseCase cryptoUseCase.EnvelopeUseCase,
	opts ...Option,
) *Server {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		logger:          logger,
		envelopeUseCase: envelopeUseCase,
	}
	if o.rateLimitEnabled {
		s.limiters = newRateLimiterStore(o.rateLimitRPS, o.rateLimitBurst)
	}

	s.server = newHTTPServer(host, port, s.router(o))
	return s
}

func (s *Server) router(o serverOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(CustomLoggerMiddleware(s.logger))
	if o.meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(o.meterProvider, o.metricsNamespace))
	}
	if cors := createCORSMiddleware(o.corsEnabled, o.corsAllowOrigins, s.logger); cors != nil {
		router.Use(cors)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readyHandler)

	v1 := router.Group("/v1")
	if s.limiters != nil {
		v1.Use(rateLimitMiddleware(s.limiters, s.logger))
	}
	v1.GET("/keys/status", s.keyStatusHandler)

	return router
}

// GetHandler returns the router, for tests.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called. Idle rate limiters are evicted while ctx is live.
func (s *Server) Start(ctx context.Context) error {
	if s.limiters != nil {
		go s.limiters.runCleanup(ctx, limiterCleanupInterval)
	}

	return listenAndServe(s.server, s.logger, "http server")
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
