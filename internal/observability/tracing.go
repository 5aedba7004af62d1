package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures OTLP trace export. An empty Endpoint leaves
// the tracer in no-op mode: spans are created but never exported, so
// call sites don't need nil checks beyond the usual optional-tracer
// guard.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string

	// Environment tags spans with the deployment environment.
	Environment string

	// Endpoint is the OTLP gRPC collector ("host:4317"). Empty disables export.
	Endpoint string

	// SamplingRate is the fraction of traces recorded; 0 means 1.0.
	SamplingRate float64

	// Attributes are extra resource attributes stamped on every span.
	Attributes map[string]string

	// EnableInsecure turns off TLS toward the collector.
	EnableInsecure bool
}

// Tracer creates the two span kinds this engine emits: one per LLM
// call (client span) and one per tool execution (internal span).
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer and returns it with a shutdown function to
// flush the exporter on exit. Export failures degrade to no-op tracing
// rather than failing startup.
func NewTracer(cfg TraceConfig) (*Tracer, func(context.Context) error) {
	noopShutdown := func(context.Context) error { return nil }

	if cfg.ServiceName == "" {
		cfg.ServiceName = "moviebot-agent"
	}
	if cfg.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, noopShutdown
	}

	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.EnableInsecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, noopShutdown
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		res = resource.Default()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}
	return t, provider.Shutdown
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0 || rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// TraceLLMRequest opens the span wrapping one LLM completion call.
// Callers must End() the returned span.
func (t *Tracer) TraceLLMRequest(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	name := "llm.request"
	if provider != "" {
		name = fmt.Sprintf("llm.%s", provider)
	}
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		))
}

// TraceToolExecution opens the span wrapping one tool invocation,
// including all its retries and any hedged attempt.
func (t *Tracer) TraceToolExecution(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("tool.%s", toolName),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("tool.name", toolName)))
}

// RecordError marks the span failed and records err on it. Nil errors
// are ignored so call sites can pass through unconditionally.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
