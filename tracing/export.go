package tracing

import (
	"context"

	"github.com/getpup/pupsourcing/es"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to an es.Logger at debug level.
// It is meant for the CLI, where a collector endpoint is usually not available.
type LogExporter struct {
	logger es.Logger
}

// NewLogExporter creates a LogExporter. A nil logger drops every span.
func NewLogExporter(logger es.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.logger == nil {
		return nil
	}
	for _, s := range spans {
		args := []interface{}{
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		}
		for _, kv := range s.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		e.logger.Debug(ctx, "span finished", args...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}

// NewLogProvider returns a TracerProvider that exports spans synchronously to logger.
// Callers own the provider and should Shutdown it on exit.
func NewLogProvider(logger es.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(logger)))
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)
