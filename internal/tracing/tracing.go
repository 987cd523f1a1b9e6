package tracing

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournament/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewProvider builds the tracer provider and installs it globally. Spans are
// exported over OTLP/gRPC when an endpoint is configured; without one they are
// still created and sampled, but dropped at the end. Callers must Shutdown the
// provider to flush pending spans.
func NewProvider(ctx context.Context, cfg config.TracingConfig, extra ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	if cfg.Endpoint != "" {
		expOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			expOpts = append(expOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, expOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	opts = append(opts, extra...)

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp, nil
}
