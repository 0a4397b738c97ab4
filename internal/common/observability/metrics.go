// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Meter records per-job OTel instruments, exported through the Prometheus registry.
type Meter struct {
	provider    *metric.MeterProvider
	jobCounter  otelmetric.Int64Counter
	jobDuration otelmetric.Float64Histogram
	pairCounter otelmetric.Int64Counter
}

func newMeter(serviceName string) (*Meter, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := buildInstruments(provider.Meter(serviceName))
	if err != nil {
		return nil, err
	}
	m.provider = provider
	return m, nil
}

func noopMeter() *Meter {
	m, _ := buildInstruments(noop.NewMeterProvider().Meter("noop"))
	return m
}

func buildInstruments(meter otelmetric.Meter) (*Meter, error) {
	jobCounter, err := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	pairCounter, err := meter.Int64Counter(
		"matching.pairs.scored",
		otelmetric.WithDescription("Demand/supplier pairs scored"),
	)
	if err != nil {
		return nil, err
	}
	return &Meter{jobCounter: jobCounter, jobDuration: jobDuration, pairCounter: pairCounter}, nil
}

func (m *Meter) RecordJobProcessed(ctx context.Context, taskType, status string) {
	m.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (m *Meter) RecordJobDuration(ctx context.Context, taskType string, d time.Duration, status string) {
	m.jobDuration.Record(ctx, float64(d.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (m *Meter) RecordPairsScored(ctx context.Context, strategy string, n int) {
	m.pairCounter.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("strategy", strategy)))
}

func (m *Meter) shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
