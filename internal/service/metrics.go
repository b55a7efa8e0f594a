package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for discovery operations.
var (
	tracer = otel.Tracer("ccgraph.service")
	meter  = otel.Meter("ccgraph.service")
)

var (
	queryLatency   metric.Float64Histogram
	queryTotal     metric.Int64Counter
	neighborsSeen  metric.Int64Histogram
	anomaliesTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"discovery_query_duration_seconds",
			metric.WithDescription("Duration of discovery queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryTotal, err = meter.Int64Counter(
			"discovery_query_total",
			metric.WithDescription("Total number of discovery queries"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		neighborsSeen, err = meter.Int64Histogram(
			"discovery_unique_neighbors",
			metric.WithDescription("Unique neighbor vertices aggregated per query"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		anomaliesTotal, err = meter.Int64Counter(
			"discovery_label_anomalies_total",
			metric.WithDescription("Neighbor ids whose label could not be resolved"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordQuery records one finished query.
func recordQuery(ctx context.Context, op, direction string, duration time.Duration, neighbors int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("direction", direction),
		attribute.Bool("success", success),
	)
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryTotal.Add(ctx, 1, attrs)
	if success && neighbors > 0 {
		neighborsSeen.Record(ctx, int64(neighbors), metric.WithAttributes(attribute.String("op", op)))
	}
}

func recordAnomaly(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	anomaliesTotal.Add(ctx, 1)
}
