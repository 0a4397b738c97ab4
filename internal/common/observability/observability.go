// internal/common/observability/observability.go
package observability

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the OTel meter and tracer handed to workers.
type Observability struct {
	*Meter
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
}

// New wires the Prometheus-backed meter and, when opts.Endpoint is set, span export.
// Failures degrade to no-op instruments so workers never block on telemetry.
func New(serviceName string, opts TracingOptions) *Observability {
	o := &Observability{Meter: noopMeter(), tracer: noopTracer()}

	if m, err := newMeter(serviceName); err != nil {
		log.Printf("observability: prometheus exporter unavailable: %v", err)
	} else {
		o.Meter = m
	}

	if opts.Endpoint != "" {
		tp, err := newTracerProvider(context.Background(), serviceName, opts)
		if err != nil {
			log.Printf("observability: tracing disabled: %v", err)
		} else {
			o.tracerProvider = tp
			o.tracer = tp.Tracer(serviceName)
		}
	}
	return o
}

// NewNoop returns instruments that record nothing; used in tests.
func NewNoop() *Observability {
	return &Observability{Meter: noopMeter(), tracer: noopTracer()}
}

// StartSpan opens a span named name with string attributes.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(kv...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	errs = append(errs, o.Meter.shutdown(ctx))
	if err := errors.Join(errs...); err != nil {
		log.Printf("observability: shutdown: %v", err)
	}
}
