// Package metrics exports OpenTelemetry instruments in Prometheus format: use-case
// outcomes, the data key state and HTTP requests of the status server.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Provider owns the meter provider and the private Prometheus registry it exports to.
type Provider struct {
	meterProvider *metric.MeterProvider
	exporter      *promexporter.Exporter
	registry      *prometheus.Registry
}

// ProviderOption configures a Provider.
type ProviderOption func(registry *prometheus.Registry) error

// WithRuntimeMetrics adds the Go runtime and process collectors to the registry.
func WithRuntimeMetrics() ProviderOption {
	return func(registry *prometheus.Registry) error {
		if err := registry.Register(collectors.NewGoCollector()); err != nil {
			return err
		}
		return registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
}

// NewProvider creates a provider backed by a private registry holding only keyguard's
// instruments plus whatever opts add.
func NewProvider(namespace string, opts ...ProviderOption) (*Provider, error) {
	registry := prometheus.NewRegistry()
	for _, opt := range opts {
		if err := opt(registry); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
		promexporter.WithNamespace(namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return &Provider{
		meterProvider: metric.NewMeterProvider(metric.WithReader(exporter)),
		exporter:      exporter,
		registry:      registry,
	}, nil
}

// Handler serves the registry for scraping.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MeterProvider returns the OpenTelemetry meter provider.
func (p *Provider) MeterProvider() *metric.MeterProvider {
	return p.meterProvider
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
