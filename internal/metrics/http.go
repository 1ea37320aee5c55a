package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const unmatchedRoute = "unmatched"

// HTTPMetricsMiddleware records <namespace>_http_requests_total and
// <namespace>_http_request_duration_seconds per method, route and status code.
// Requests that match no route share a single "unmatched" label.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	requests, durations, err := httpInstruments(meterProvider.Meter(namespace), namespace)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", routeLabel(c.FullPath())),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		ctx := c.Request.Context()
		requests.Add(ctx, 1, attrs)
		durations.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func httpInstruments(meter metric.Meter, namespace string) (metric.Int64Counter, metric.Float64Histogram, error) {
	requests, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, nil, err
	}
	durations, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, nil, err
	}
	return requests, durations, nil
}

func routeLabel(fullPath string) string {
	if fullPath == "" {
		return unmatchedRoute
	}
	return fullPath
}
