package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aleph-Alpha/flux/v1/logger"
)

// Tracer owns the process-wide OpenTelemetry TracerProvider.
type Tracer struct {
	tracer *sdktrace.TracerProvider
	logger logger.Logger
}

// NewClient creates the TracerProvider described by cfg, installs it as the
// global provider and sets the W3C TraceContext + Baggage propagator.
//
// Example:
//
//	t, err := tracer.NewClient(tracer.Config{
//		ServiceName:  "flux",
//		AppEnv:       "production",
//		EnableExport: true,
//	}, log)
func NewClient(cfg Config, log logger.Logger) (*Tracer, error) {
	var options []sdktrace.TracerProviderOption

	if cfg.EnableExport {
		var clientOpts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			clientOpts = append(clientOpts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(clientOpts...))
		if err != nil {
			log.Error("cannot initiate tracer", err, nil)
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
		options = append(options, sdktrace.WithBatcher(exporter))
	}

	options = append(options, sdktrace.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.AppEnv),
		attribute.String("environment", cfg.AppEnv),
	)))

	tp := sdktrace.NewTracerProvider(options...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Tracer{tracer: tp, logger: log}, nil
}

// Provider returns the underlying TracerProvider, e.g. for injection into
// packages that accept a trace.TracerProvider.
func (t *Tracer) Provider() trace.TracerProvider {
	return t.tracer
}
