// Package tracer provides distributed tracing using OpenTelemetry.
//
// NewClient installs a global TracerProvider and the W3C propagator, so any
// package that calls otel.Tracer or otel.GetTextMapPropagator participates in
// the same traces. The rabbit package relies on this to continue a trace that
// a publisher started, using the AMQP message headers as carrier.
//
// Basic Usage:
//
//	t, err := tracer.NewClient(tracer.Config{ServiceName: "flux", AppEnv: "production"}, log)
//
//	ctx, span := t.StartSpan(ctx, "process-event")
//	defer span.End()
//
//	t.SetAttributes(span, map[string]interface{}{"event.kind": "issue.created"})
//	if err != nil {
//		t.RecordErrorOnSpan(span, err)
//	}
//
// Configuration:
//
//	SERVICE_NAME=flux
//	APP_ENV=production
//	TRACER_ENABLE_EXPORT=true
//	TRACER_ENDPOINT=otel-collector:4318
//	TRACER_INSECURE=true
//
// Thread Safety:
//
// All methods on the Tracer type are safe for concurrent use by multiple goroutines.
package tracer
