package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ServerOptions = trace.WithSpanKind(trace.SpanKindServer)
var ClientOptions = trace.WithSpanKind(trace.SpanKindClient)

const InstrumentationName = "github.com/GlintPay/gkps"

func GetTracer(ctx context.Context) trace.Tracer {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return newTracer(span.TracerProvider())
	} else {
		return newTracer(otel.GetTracerProvider())
	}
}

func newTracer(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion("semver:1.0"))
}

// StartFetch opens a client span for reading one Kubernetes object
func StartFetch(ctx context.Context, kind, namespace, name string) (context.Context, trace.Span) {
	return GetTracer(ctx).Start(ctx, "fetch-"+kind, ClientOptions, trace.WithAttributes(
		attribute.String("k8s.namespace.name", namespace),
		attribute.String("k8s.object.name", name),
	))
}

// EndFetch records any error on the span and ends it
func EndFetch(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
