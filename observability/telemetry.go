// Package observability wires OpenTelemetry tracing and metrics around
// dispatch, address verification and backend probing.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/missivehub/pkg/config"
	"github.com/kart-io/missivehub/pkg/missive"
)

// TelemetryProvider provides observability features.
type TelemetryProvider struct {
	config        *config.TelemetryConfig
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider

	// Metrics
	missivesSent     metric.Int64Counter
	missivesFailed   metric.Int64Counter
	fallbackAttempts metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	backendProbes    metric.Int64Counter
}

// NewTelemetryProvider creates a new telemetry provider. A nil or
// disabled config yields a no-op provider.
func NewTelemetryProvider(cfg *config.TelemetryConfig) (*TelemetryProvider, error) {
	if cfg == nil {
		cfg = &config.TelemetryConfig{
			ServiceName:    "missivehub",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			OTLPEndpoint:   "localhost:4318",
			TracingEnabled: true,
			MetricsEnabled: true,
			SampleRate:     1.0,
			Enabled:        false,
		}
	}

	tp := &TelemetryProvider{
		config: cfg,
	}

	if !cfg.Enabled {
		// Return no-op provider
		tp.tracer = otel.Tracer("missivehub")
		tp.meter = otel.Meter("missivehub")
		return tp, nil
	}

	if cfg.TracingEnabled {
		if err := tp.initTracing(); err != nil {
			return nil, fmt.Errorf("init tracing: %v", err)
		}
	}

	if cfg.MetricsEnabled {
		if err := tp.initMetrics(); err != nil {
			return nil, fmt.Errorf("init metrics: %v", err)
		}
	}

	return tp, nil
}

// initTracing initializes OpenTelemetry tracing
func (tp *TelemetryProvider) initTracing() error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(tp.config.ServiceName),
			semconv.ServiceVersion(tp.config.ServiceVersion),
			semconv.DeploymentEnvironment(tp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %v", err)
	}

	exporter, err := otlptrace.New(context.Background(),
		otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(tp.config.OTLPEndpoint),
			otlptracehttp.WithHeaders(tp.config.OTLPHeaders),
		),
	)
	if err != nil {
		return fmt.Errorf("create exporter: %v", err)
	}

	tp.traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tp.config.SampleRate)),
	)

	otel.SetTracerProvider(tp.traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tp.tracer = otel.Tracer("missivehub",
		trace.WithInstrumentationVersion("1.0.0"),
		trace.WithSchemaURL(semconv.SchemaURL),
	)

	return nil
}

// initMetrics initializes OpenTelemetry metrics
func (tp *TelemetryProvider) initMetrics() error {
	tp.meter = otel.Meter("missivehub",
		metric.WithInstrumentationVersion("1.0.0"),
		metric.WithSchemaURL(semconv.SchemaURL),
	)

	var err error

	tp.missivesSent, err = tp.meter.Int64Counter(
		"missivehub_missives_sent_total",
		metric.WithDescription("Total number of missives sent"),
	)
	if err != nil {
		return fmt.Errorf("create missives_sent counter: %v", err)
	}

	tp.missivesFailed, err = tp.meter.Int64Counter(
		"missivehub_missives_failed_total",
		metric.WithDescription("Total number of missives that exhausted every provider"),
	)
	if err != nil {
		return fmt.Errorf("create missives_failed counter: %v", err)
	}

	tp.fallbackAttempts, err = tp.meter.Int64Counter(
		"missivehub_fallback_attempts_total",
		metric.WithDescription("Total number of provider attempts made during dispatch"),
	)
	if err != nil {
		return fmt.Errorf("create fallback_attempts counter: %v", err)
	}

	tp.dispatchDuration, err = tp.meter.Float64Histogram(
		"missivehub_dispatch_duration_seconds",
		metric.WithDescription("Duration of missive dispatch operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create dispatch_duration histogram: %v", err)
	}

	tp.backendProbes, err = tp.meter.Int64Counter(
		"missivehub_backend_probes_total",
		metric.WithDescription("Total number of address backend probes"),
	)
	if err != nil {
		return fmt.Errorf("create backend_probes counter: %v", err)
	}

	return nil
}

// TraceOperation creates a new span for an operation
func (tp *TelemetryProvider) TraceOperation(ctx context.Context, operationName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	if tp.tracer == nil {
		// Return no-op span
		return ctx, trace.SpanFromContext(ctx)
	}

	return tp.tracer.Start(ctx, operationName,
		trace.WithAttributes(attributes...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// TraceDispatch creates a span for a missive dispatch.
func (tp *TelemetryProvider) TraceDispatch(ctx context.Context, missiveID string, channel missive.ChannelType, candidates int) (context.Context, trace.Span) {
	attributes := []attribute.KeyValue{
		attribute.String("missivehub.missive.id", missiveID),
		attribute.String("missivehub.channel", channel.String()),
		attribute.Int("missivehub.candidates.count", candidates),
		attribute.String("missivehub.operation", "dispatch"),
	}

	return tp.TraceOperation(ctx, "missivehub.dispatch", attributes...)
}

// TraceAddressVerification creates a span for an address backend call.
func (tp *TelemetryProvider) TraceAddressVerification(ctx context.Context, backend string) (context.Context, trace.Span) {
	attributes := []attribute.KeyValue{
		attribute.String("missivehub.backend", backend),
		attribute.String("missivehub.operation", "verify_address"),
	}

	return tp.TraceOperation(ctx, "missivehub.verify_address", attributes...)
}

// RecordMissiveSent records a successful dispatch.
func (tp *TelemetryProvider) RecordMissiveSent(ctx context.Context, providerName string, channel missive.ChannelType, attempts int, duration time.Duration) {
	if tp.missivesSent != nil {
		tp.missivesSent.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", providerName),
			attribute.String("channel", channel.String()),
			attribute.String("status", "success"),
		))
	}

	if tp.fallbackAttempts != nil {
		tp.fallbackAttempts.Add(ctx, int64(attempts), metric.WithAttributes(
			attribute.String("channel", channel.String()),
		))
	}

	if tp.dispatchDuration != nil {
		tp.dispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("provider", providerName),
			attribute.String("status", "success"),
		))
	}
}

// RecordMissiveFailed records a dispatch that exhausted every provider.
func (tp *TelemetryProvider) RecordMissiveFailed(ctx context.Context, channel missive.ChannelType, attempts int, duration time.Duration, errorType string) {
	if tp.missivesFailed != nil {
		tp.missivesFailed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", channel.String()),
			attribute.String("error_type", errorType),
		))
	}

	if tp.fallbackAttempts != nil {
		tp.fallbackAttempts.Add(ctx, int64(attempts), metric.WithAttributes(
			attribute.String("channel", channel.String()),
		))
	}

	if tp.dispatchDuration != nil {
		tp.dispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("channel", channel.String()),
			attribute.String("status", "error"),
		))
	}
}

// RecordBackendProbe records one address backend probe outcome.
func (tp *TelemetryProvider) RecordBackendProbe(ctx context.Context, backend, status string) {
	if tp.backendProbes != nil {
		tp.backendProbes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", status),
		))
	}
}

// SetSpanError sets an error on the current span
func (tp *TelemetryProvider) SetSpanError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks the span as successful
func (tp *TelemetryProvider) SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// Shutdown gracefully shuts down the telemetry provider
func (tp *TelemetryProvider) Shutdown(ctx context.Context) error {
	if tp.traceProvider != nil {
		return tp.traceProvider.Shutdown(ctx)
	}
	return nil
}

// GetTracer returns the tracer instance
func (tp *TelemetryProvider) GetTracer() trace.Tracer {
	return tp.tracer
}

// GetMeter returns the meter instance
func (tp *TelemetryProvider) GetMeter() metric.Meter {
	return tp.meter
}
