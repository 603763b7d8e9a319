package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "lambdadev"

// Config holds tracing settings. Spans are sent to an OTLP/HTTP collector.
type Config struct {
	Enabled bool
	// Endpoint is either host:port (plain HTTP) or a full URL such as
	// https://collector.example.com:4318/v1/traces.
	Endpoint   string
	SampleRate float64 // 0.0 to 1.0
	Version    string
}

type provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

var global = disabled()

func disabled() *provider {
	return &provider{tracer: noop.NewTracerProvider().Tracer(ServiceName)}
}

// Init installs the global tracer. With Enabled false every span is a
// no-op. The collector is not contacted until the first batch is flushed,
// so an unreachable endpoint does not fail startup.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		global = disabled()
		return nil
	}
	exp, err := otlptracehttp.New(ctx, endpointOptions(cfg.Endpoint)...)
	if err != nil {
		return fmt.Errorf("create OTLP exporter: %w", err)
	}
	return install(ctx, exp, cfg)
}

func endpointOptions(endpoint string) []otlptracehttp.Option {
	if strings.Contains(endpoint, "://") {
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	}
	return []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	}
}

func install(ctx context.Context, exp sdktrace.SpanExporter, cfg Config) error {
	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(ServiceName))}
	if cfg.Version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.Version)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate >= 0 && cfg.SampleRate < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	global = &provider{tp: tp, tracer: tp.Tracer(ServiceName)}
	return nil
}

// Shutdown flushes pending spans and restores the no-op tracer.
func Shutdown(ctx context.Context) error {
	p := global
	global = disabled()
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// Tracer returns the global tracer.
func Tracer() trace.Tracer {
	return global.tracer
}

// Enabled reports whether spans are being recorded and exported.
func Enabled() bool {
	return global.tp != nil
}
