// Package tracing wraps host selection in OpenTelemetry spans.
//
// Without a configured TracerProvider the global no-op tracer is used and the
// wrappers cost next to nothing.
package tracing

import (
	"context"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope name.
const TracerName = "github.com/getpup/pupsourcing-hostselect"

// Tracer returns the tracer of provider, or of the global provider when nil.
func Tracer(provider trace.TracerProvider) trace.Tracer {
	if provider == nil {
		return otel.Tracer(TracerName)
	}
	return provider.Tracer(TracerName)
}

// ActiveHostFinder is implemented by resolver.Resolver and resolver.Poller.
type ActiveHostFinder interface {
	ResolveActiveHost(ctx context.Context, topic hostselect.Topic) (string, error)
}

// HostRotator is implemented by rotation.Assigner.
type HostRotator interface {
	NextHost(ctx context.Context, topic hostselect.Topic) (string, error)
}

type finder struct {
	next   ActiveHostFinder
	tracer trace.Tracer
}

// Finder wraps next so every resolution runs in a "hostselect.active_host" span.
func Finder(next ActiveHostFinder, tracer trace.Tracer) ActiveHostFinder {
	return &finder{next: next, tracer: tracer}
}

func (f *finder) ResolveActiveHost(ctx context.Context, topic hostselect.Topic) (string, error) {
	ctx, span := start(ctx, f.tracer, "hostselect.active_host", topic)
	defer span.End()

	host, err := f.next.ResolveActiveHost(ctx, topic)
	finish(span, host, err)
	return host, err
}

type rotator struct {
	next   HostRotator
	tracer trace.Tracer
}

// Rotator wraps next so every rotation runs in a "hostselect.next_host" span.
func Rotator(next HostRotator, tracer trace.Tracer) HostRotator {
	return &rotator{next: next, tracer: tracer}
}

func (r *rotator) NextHost(ctx context.Context, topic hostselect.Topic) (string, error) {
	ctx, span := start(ctx, r.tracer, "hostselect.next_host", topic)
	defer span.End()

	host, err := r.next.NextHost(ctx, topic)
	finish(span, host, err)
	return host, err
}

func start(ctx context.Context, tracer trace.Tracer, name string, topic hostselect.Topic) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("hostselect.topic", string(topic))),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func finish(span trace.Span, host string, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("hostselect.outcome", string(metrics.Classify(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("hostselect.host", host),
		attribute.String("hostselect.outcome", string(metrics.OutcomeSuccess)),
	)
	span.SetStatus(codes.Ok, "")
}
