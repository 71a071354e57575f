// Package telemetry configures OpenTelemetry tracing for the pipeline.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// InitTracerProvider installs the global tracer provider and the W3C trace
// context propagator. Stage spans get real trace IDs, which the Pub/Sub
// publisher injects into message attributes. Extra options, such as an
// exporter, are appended to the provider.
func InitTracerProvider(ctx context.Context, serviceName string, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

// NewCloudTraceExporter builds a Cloud Trace span exporter for projectID.
// Pass it to InitTracerProvider through sdktrace.WithBatcher.
func NewCloudTraceExporter(projectID string, opts ...texporter.Option) (*texporter.Exporter, error) {
	if projectID == "" {
		return nil, errors.New("cloud trace exporter requires a project id")
	}
	exporter, err := texporter.New(append([]texporter.Option{texporter.WithProjectID(projectID)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud trace exporter: %w", err)
	}
	return exporter, nil
}
