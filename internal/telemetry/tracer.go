// internal/telemetry/tracer.go
// Package telemetry bootstraps OpenTelemetry tracing for the audit registry
// service. Spans are exported to stdout, which is enough for development and
// for correlating handler traces with the structured request log.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitTracer installs a stdout-exporting tracer provider as the global
// OpenTelemetry provider and configures W3C trace context propagation.
// Parameters:
//   - serviceName: Service name attached to every exported span
// Returns:
//   - func(context.Context): Shutdown function that flushes buffered spans
//   - error: Any error that occurred during initialization
func InitTracer(serviceName string) (func(context.Context), error) {
	// Create a stdout exporter for development
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	// Attach the service identity to every exported span
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	// Register the provider and propagator globally so handlers can pick up
	// the tracer via otel.Tracer
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	shutdown := func(ctx context.Context) {
		// Flush any remaining spans before exit
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("tracer provider shutdown failed", "error", err)
		}
	}
	return shutdown, nil
}
