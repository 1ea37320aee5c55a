package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	"github.com/allisson/keyguard/internal/metrics"
)

const metricsDomain = "keys"

// envelopeUseCaseWithMetrics decorates EnvelopeUseCase with metrics instrumentation.
type envelopeUseCaseWithMetrics struct {
	next    EnvelopeUseCase
	metrics metrics.BusinessMetrics
}

// NewEnvelopeUseCaseWithMetrics wraps an EnvelopeUseCase with metrics recording.
func NewEnvelopeUseCaseWithMetrics(useCase EnvelopeUseCase, m metrics.BusinessMetrics) EnvelopeUseCase {
	return &envelopeUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// ObtainDataKey records metrics for data key supply.
func (e *envelopeUseCaseWithMetrics) ObtainDataKey(ctx context.Context) (*cryptoDomain.DataKey, error) {
	start := time.Now()
	dataKey, err := e.next.ObtainDataKey(ctx)
	e.record(ctx, "obtain_data_key", start, err)
	return dataKey, err
}

// WithDataKey records metrics for scoped data key use, including the callback.
func (e *envelopeUseCaseWithMetrics) WithDataKey(ctx context.Context, fn func(key []byte) error) error {
	start := time.Now()
	err := e.next.WithDataKey(ctx, fn)
	e.record(ctx, "with_data_key", start, err)
	return err
}

// Status records metrics for status lookups.
func (e *envelopeUseCaseWithMetrics) Status(ctx context.Context) (*cryptoDomain.KeyStatus, error) {
	start := time.Now()
	status, err := e.next.Status(ctx)
	e.record(ctx, "status", start, err)
	return status, err
}

// Reset records metrics for resets.
func (e *envelopeUseCaseWithMetrics) Reset(ctx context.Context, confirm bool) error {
	start := time.Now()
	err := e.next.Reset(ctx, confirm)
	e.record(ctx, "reset", start, err)
	return err
}

func (e *envelopeUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	e.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	e.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}
