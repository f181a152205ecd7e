package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span components.
const (
	ComponentClient  = "apiclient"
	ComponentRefresh = "apiclient.refresh"
	ComponentSession = "session"
	ComponentServer  = "http.server"
)

type spanKey struct{}

type span struct {
	id        string
	component string
	operation string
}

// SpanID returns the id of the innermost span in ctx, or "".
func SpanID(ctx context.Context) string {
	if s, ok := ctx.Value(spanKey{}).(span); ok {
		return s.id
	}
	return ""
}

// StartSpan logs the start of operation and returns a context carrying the
// span plus a func that logs its end. Spans started from that context name
// this one as their parent, so a login shows up as session/login with the
// client requests it made nested under it.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger := currentLogger()
	if logger == nil {
		return ctx, func(error) {}
	}

	s := span{id: uuid.NewString(), component: component, operation: operation}
	attrs := []slog.Attr{
		slog.String("span_id", s.id),
		slog.String("component", component),
		slog.String("operation", operation),
	}
	if parent, ok := ctx.Value(spanKey{}).(span); ok {
		attrs = append(attrs, slog.String("parent_id", parent.id), slog.String("parent", parent.component+"/"+parent.operation))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "obs span start", attrs...)

	start := time.Now()
	ctx = context.WithValue(ctx, spanKey{}, s)
	return ctx, func(err error) {
		level := slog.LevelDebug
		end := append(attrs, slog.Duration("duration", time.Since(start)))
		if err != nil {
			level = slog.LevelWarn
			end = append(end, slog.String("error", err.Error()))
		}
		logger.LogAttrs(ctx, level, "obs span end", end...)
	}
}

// RecordMetric logs a datapoint, tagged with the current span when there is
// one. Prometheus collectors live in Metrics; this is for ad-hoc values.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger := currentLogger()
	if logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	if id := SpanID(ctx); id != "" {
		attrs = append(attrs, slog.String("span_id", id))
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}
