package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/closepath"

// AttrCallID is the span attribute carrying the call a span belongs to.
const AttrCallID = attribute.Key("closepath.call_id")

type callIDKey struct{}

// Tracer returns the ClosePath tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span. The caller must call span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartCallSpan starts a span tagged with callID and stores callID in the
// returned context for [CallID] and [Logger]. An empty callID behaves like
// [StartSpan].
func StartCallSpan(ctx context.Context, name, callID string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if callID == "" {
		return StartSpan(ctx, name, opts...)
	}
	ctx = context.WithValue(ctx, callIDKey{}, callID)
	opts = append(opts, trace.WithAttributes(AttrCallID.String(callID)))
	return Tracer().Start(ctx, name, opts...)
}

// CallID returns the call id stored by [StartCallSpan], or "".
func CallID(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

// CorrelationID returns the trace id of the span in ctx, or "". It doubles as
// the X-Correlation-ID response header.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id, span_id and call_id added
// when ctx carries them.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := CallID(ctx); id != "" {
		l = l.With(slog.String("call_id", id))
	}
	return l
}
