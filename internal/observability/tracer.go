package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oriys/folio/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
var (
	AttrDomain     = attribute.Key("folio.domain")
	AttrStore      = attribute.Key("folio.store")
	AttrOpKind     = attribute.Key("folio.op.kind")
	AttrTargetID   = attribute.Key("folio.target.id")
	AttrMutationID = attribute.Key("folio.mutation.id")
)

func start(ctx context.Context, kind trace.SpanKind, name string, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// StartSpan opens an internal span, such as a store fetch or a mutation.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, trace.SpanKindInternal, name, attrs)
}

// StartClientSpan opens a span around a call to the content API or the
// session endpoint.
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, trace.SpanKindClient, name, attrs)
}

// StartServerSpan opens a span for a request served by folio itself.
func StartServerSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, trace.SpanKindServer, name, attrs)
}

// InjectHTTP writes the W3C trace context of ctx into outgoing headers.
func InjectHTTP(ctx context.Context, h http.Header) {
	if !Enabled() {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// SpanIDs returns the hex trace and span ids of the span in ctx, or empty
// strings when ctx carries no valid span.
func SpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		spanID = sc.SpanID().String()
	}
	return traceID, spanID
}

// Logger is logging.ForTrace for the span in ctx.
func Logger(ctx context.Context, component string) *slog.Logger {
	traceID, spanID := SpanIDs(ctx)
	return logging.ForTrace(component, traceID, spanID)
}

// SetSpanError records err on span and marks it failed.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
