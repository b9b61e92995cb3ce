package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"agent-demo-webhooks/internal/common/logger"
)

type Observability struct {
	meterProvider   *metric.MeterProvider
	tracerProvider  *sdktrace.TracerProvider
	meter           otelmetric.Meter
	tracer          trace.Tracer
	webhookCounter  otelmetric.Int64Counter
	webhookDuration otelmetric.Float64Histogram
}

// New wires the otel meter provider to the Prometheus registry and sets up
// a tracer. Exporter failures degrade to metrics being skipped.
func New(serviceName string, tracingEnabled bool, log logger.Logger) *Observability {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Observability{tracer: noop.NewTracerProvider().Tracer(serviceName)}

	if tracingEnabled {
		o.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
		otel.SetTracerProvider(o.tracerProvider)
		o.tracer = o.tracerProvider.Tracer(serviceName)
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err})
		return o
	}

	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(o.meterProvider)
	o.meter = o.meterProvider.Meter(serviceName)

	o.webhookCounter, _ = o.meter.Int64Counter(
		"webhooks.processed",
		otelmetric.WithDescription("Number of webhook deliveries processed"),
	)
	o.webhookDuration, _ = o.meter.Float64Histogram(
		"webhooks.duration",
		otelmetric.WithDescription("Webhook processing duration"),
		otelmetric.WithUnit("ms"),
	)
	return o
}

// StartSpan starts a span named name. Callers must End it.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordWebhookProcessed(ctx context.Context, outcome string) {
	if o != nil && o.webhookCounter != nil {
		o.webhookCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordWebhookDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o != nil && o.webhookDuration != nil {
		o.webhookDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
