// Package tracing installs the OpenTelemetry tracer provider used by the
// HTTP server's otelhttp wrapper.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// EndpointEnv names the collector base URL, e.g. http://collector:4318.
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// tracesPath is appended to the base URL, as the OTLP exporter convention requires.
const tracesPath = "/v1/traces"

// exporterOptions turns the collector base URL into exporter options. A bare
// host:port is accepted and treated as plain http.
func exporterOptions(endpoint string) ([]otlptracehttp.Option, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing: parse %s: %w", EndpointEnv, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("tracing: %s %q has no host", EndpointEnv, endpoint)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(u.Host),
		otlptracehttp.WithURLPath(strings.TrimSuffix(u.Path, "/") + tracesPath),
	}
	switch u.Scheme {
	case "http":
		opts = append(opts, otlptracehttp.WithInsecure())
	case "https":
	default:
		return nil, fmt.Errorf("tracing: unsupported scheme %q in %s", u.Scheme, EndpointEnv)
	}
	return opts, nil
}

// Init installs a batching OTLP/HTTP tracer provider when EndpointEnv is set
// and returns its shutdown func, which flushes pending spans. Without an
// endpoint the global no-op provider stays in place.
func Init(ctx context.Context, logger *slog.Logger, serviceName, environment string) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	endpoint := os.Getenv(EndpointEnv)
	if endpoint == "" {
		logger.Info("tracing disabled", slog.String("reason", EndpointEnv+" not set"))
		return func(context.Context) error { return nil }, nil
	}

	opts, err := exporterOptions(endpoint)
	if err != nil {
		return nil, err
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled", slog.String("endpoint", endpoint), slog.String("service", serviceName))
	return tp.Shutdown, nil
}
