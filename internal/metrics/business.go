package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records use-case outcomes. Domain is the bounded context ("keys"),
// operation the use-case method ("obtain_data_key") and status either "success" or "error".
type BusinessMetrics interface {
	RecordOperation(ctx context.Context, domain, operation, status string)
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
}

type businessMetrics struct {
	operations metric.Int64Counter
	durations  metric.Float64Histogram
}

// NewBusinessMetrics creates <namespace>_operations_total and
// <namespace>_operation_duration_seconds on meterProvider.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operations, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of key management operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durations, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of key management operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &businessMetrics{operations: operations, durations: durations}, nil
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1, operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

func operationAttributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

// ProvisionedFunc reports whether the data key for alias has been provisioned.
type ProvisionedFunc func(ctx context.Context) (alias string, provisioned bool, err error)

// RegisterKeyStateGauge exposes <namespace>_data_key_provisioned, 1 once the wrapped data
// key exists and 0 before. Scrapes where fn fails report nothing.
func RegisterKeyStateGauge(meterProvider metric.MeterProvider, namespace string, fn ProvisionedFunc) error {
	meter := meterProvider.Meter(namespace)

	_, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_data_key_provisioned", namespace),
		metric.WithDescription("Whether the wrapped data key has been provisioned"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			alias, provisioned, err := fn(ctx)
			if err != nil {
				return nil
			}
			var value int64
			if provisioned {
				value = 1
			}
			o.Observe(value, metric.WithAttributes(attribute.String("alias", alias)))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create key state gauge: %w", err)
	}
	return nil
}

// NoOpBusinessMetrics discards everything. Used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}
