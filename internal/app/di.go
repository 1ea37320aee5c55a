// Package app wires keyguard's components together. Every component is built lazily on
// first access and cached, including its construction error.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/keyguard/internal/config"
	cryptoService "github.com/allisson/keyguard/internal/crypto/service"
	cryptoUseCase "github.com/allisson/keyguard/internal/crypto/usecase"
	"github.com/allisson/keyguard/internal/database"
	"github.com/allisson/keyguard/internal/http"
	"github.com/allisson/keyguard/internal/metrics"
)

// Container holds all application dependencies.
type Container struct {
	config    *config.Config
	logOutput io.Writer

	logger *slog.Logger

	db        *sql.DB
	txManager database.TxManager

	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	aeadManager     cryptoService.AEADManager
	kmsService      cryptoService.KMSService
	keyProvider     cryptoService.KeyProvider
	wrappedKeyRepo  cryptoUseCase.WrappedKeyRepository
	envelopeUseCase cryptoUseCase.EnvelopeUseCase

	httpServer    *http.Server
	metricsServer *http.MetricsServer

	loggerInit          sync.Once
	dbInit              sync.Once
	txManagerInit       sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	aeadManagerInit     sync.Once
	kmsServiceInit      sync.Once
	keyProviderInit     sync.Once
	wrappedKeyRepoInit  sync.Once
	envelopeUseCaseInit sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once

	mu         sync.Mutex
	initErrors map[string]error
}

// NewContainer creates a container for cfg. Logs go to stdout.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		logOutput:  os.Stdout,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the JSON logger at the configured level.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the SQL pool of the wrapped-key store.
func (c *Container) DB() (*sql.DB, error) {
	return lazy(c, &c.dbInit, "db", &c.db, c.initDB)
}

// TxManager returns the transaction manager for DB.
func (c *Container) TxManager() (database.TxManager, error) {
	return lazy(c, &c.txManagerInit, "txManager", &c.txManager, c.initTxManager)
}

// MetricsProvider returns the Prometheus-backed provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return lazy(c, &c.metricsProviderInit, "metricsProvider", &c.metricsProvider, c.initMetricsProvider)
}

// BusinessMetrics returns use-case metrics, a no-op implementation when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return lazy(c, &c.businessMetricsInit, "businessMetrics", &c.businessMetrics, c.initBusinessMetrics)
}

// HTTPServer returns the status server.
func (c *Container) HTTPServer() (*http.Server, error) {
	return lazy(c, &c.httpServerInit, "httpServer", &c.httpServer, c.initHTTPServer)
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return lazy(c, &c.metricsServerInit, "metricsServer", &c.metricsServer, c.initMetricsServer)
}

// Shutdown stops servers and releases every initialized resource.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if c.keyProvider != nil {
		if err := c.keyProvider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("key provider close: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

// lazy builds a component once and caches both the value and the error.
func lazy[T any](c *Container, once *sync.Once, name string, dst *T, init func() (T, error)) (T, error) {
	once.Do(func() {
		value, err := init()
		if err != nil {
			c.mu.Lock()
			c.initErrors[name] = err
			c.mu.Unlock()
			return
		}
		*dst = value
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return *dst, c.initErrors[name]
}

func (c *Container) initLogger() *slog.Logger {
	var level slog.Level
	switch c.config.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(c.logOutput, &slog.HandlerOptions{Level: level}))
}

func (c *Container) initDB() (*sql.DB, error) {
	var driver string
	switch c.config.WrappedKeyStore {
	case config.StorePostgres:
		driver = "postgres"
	case config.StoreMySQL:
		driver = "mysql"
	default:
		return nil, fmt.Errorf("wrapped key store %q does not use a database", c.config.WrappedKeyStore)
	}

	db, err := database.Connect(context.Background(), database.Config{
		Driver:             driver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace, metrics.WithRuntimeMetrics())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	envelopeUseCase, err := c.EnvelopeUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope use case for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}

	opts := []http.Option{
		http.WithCORS(c.config.CORSEnabled, c.config.CORSAllowOrigins),
		http.WithRateLimit(c.config.RateLimitEnabled, c.config.RateLimitRequestsPerSec, c.config.RateLimitBurst),
	}
	if provider != nil {
		opts = append(opts, http.WithHTTPMetrics(provider.MeterProvider(), c.config.MetricsNamespace))
	}

	return http.NewServer(c.config.ServerHost, c.config.ServerPort, c.Logger(), envelopeUseCase, opts...), nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}

	envelopeUseCase, err := c.EnvelopeUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope use case for metrics server: %w", err)
	}
	err = metrics.RegisterKeyStateGauge(provider.MeterProvider(), c.config.MetricsNamespace,
		func(ctx context.Context) (string, bool, error) {
			status, err := envelopeUseCase.Status(ctx)
			if err != nil {
				return "", false, err
			}
			return status.KeyAlias, status.Provisioned, nil
		})
	if err != nil {
		return nil, err
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
