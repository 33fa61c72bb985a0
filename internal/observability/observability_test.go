package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	UseTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() {
		require.NoError(t, Init(context.Background(), Config{Enabled: false}))
	})
	return rec
}

func TestInitDisabledUsesNoopTracer(t *testing.T) {
	require.NoError(t, Init(context.Background(), Config{Enabled: false}))
	assert.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop")
	span.End()
	traceID, spanID := SpanIDs(ctx)
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestClientSpanRecordsError(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartClientSpan(context.Background(), "content.fetch", AttrDomain.String("projects"))
	traceID, spanID := SpanIDs(ctx)
	assert.NotEmpty(t, traceID)
	assert.NotEmpty(t, spanID)
	SetSpanError(span, errors.New("boom"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "content.fetch", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestInjectHTTPWritesTraceparent(t *testing.T) {
	withRecorder(t)

	ctx, span := StartClientSpan(context.Background(), "content.write")
	defer span.End()

	h := http.Header{}
	InjectHTTP(ctx, h)
	assert.NotEmpty(t, h.Get("traceparent"))
}

func TestHTTPMiddlewareRecordsServerSpan(t *testing.T) {
	rec := withRecorder(t)

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/content/hero", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /content/hero", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestHTTPMiddlewareNamesSpanAfterRoute(t *testing.T) {
	rec := withRecorder(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /content/{domain}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	HTTPMiddleware(mux).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/content/blog", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /content/{domain}", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "blog", attrs[string(AttrDomain)])
	assert.Equal(t, "200", attrs["http.response.status_code"])
}

func TestInitWithDiscardExporter(t *testing.T) {
	require.NoError(t, Init(context.Background(), Config{Enabled: true, Exporter: "none", SampleRate: 0.5}))
	t.Cleanup(func() { _ = Init(context.Background(), Config{Enabled: false}) })

	assert.True(t, Enabled())
	assert.NoError(t, Shutdown(context.Background()))
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(-1).Description())
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}
