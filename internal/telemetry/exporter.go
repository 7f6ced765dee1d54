package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to a slog logger at debug level.
type logExporter struct {
	logger *slog.Logger
}

func (e logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []any{
			"span", span.Name(),
			"trace_id", span.SpanContext().TraceID().String(),
			"span_id", span.SpanContext().SpanID().String(),
			"duration_ms", span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status", span.Status().Code.String(),
		}
		if desc := span.Status().Description; desc != "" {
			attrs = append(attrs, "error", desc)
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, "span", attrs...)
	}
	return nil
}

func (logExporter) Shutdown(context.Context) error { return nil }

// Init installs a global tracer provider that logs spans through logger and
// returns its shutdown function.
func Init(logger *slog.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(logExporter{logger: logger}))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
