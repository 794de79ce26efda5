package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer() (*Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewTracerWithProvider(provider, "test"), recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(context.Background(), TracerConfig{ServiceName: "test-service"})

	require.NoError(t, err)
	assert.Nil(t, tracer.provider)
	assert.NoError(t, tracer.Shutdown(context.Background()))

	_, span := tracer.StartSpan(context.Background(), "noop")
	span.End()
}

func TestNewTracer_EnabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(context.Background(), TracerConfig{
		ServiceName:    "test-service",
		ServiceVersion: "1.2.3",
		SamplingRate:   1.0,
		Enabled:        true,
	})
	require.NoError(t, err)
	require.NotNil(t, tracer.provider)

	_, span := tracer.StartSpan(context.Background(), "local")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1.0, want: "AlwaysOnSampler"},
		{rate: 2.0, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, createSampler(tt.rate).Description())
	}
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	tracer, recorder := newRecordingTracer()

	var gotTraceID, gotSpanID string
	handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceID = TraceIDFromContext(r.Context())
		gotSpanID = SpanIDFromContext(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest(http.MethodGet, "/billing", nil)
	req.Header.Set("User-Agent", "PortalCGI/1.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "GET /billing", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, span.SpanContext().TraceID().String(), gotTraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), gotSpanID)

	status, ok := spanAttr(span, "http.response.status_code")
	require.True(t, ok)
	assert.EqualValues(t, http.StatusBadGateway, status.AsInt64())

	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "Bad Gateway", span.Status().Description)

	ua, ok := spanAttr(span, "user_agent.original")
	require.True(t, ok)
	assert.Equal(t, "PortalCGI/1.0", ua.AsString())
}

func TestInjectTraceContext(t *testing.T) {
	t.Parallel()

	tracer, _ := newRecordingTracer()
	ctx, span := tracer.StartSpan(context.Background(), "outbound")
	defer span.End()

	req := httptest.NewRequest(http.MethodGet, "http://billing/", nil)
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))
	want := req.Header.Get("traceparent")
	require.NotEmpty(t, want)

	out := httptest.NewRequest(http.MethodGet, "http://billing/", nil)
	InjectTraceContext(ctx, out)

	// The global propagator is a no-op unless tracing was enabled, so only
	// assert when one is installed.
	if got := out.Header.Get("traceparent"); got != "" {
		assert.Equal(t, want, got)
	}
}
