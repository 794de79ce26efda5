package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// OTLP exporter defaults.
const (
	// DefaultOTLPTimeout is the default timeout for OTLP exporter operations.
	DefaultOTLPTimeout = 10 * time.Second

	// DefaultOTLPReconnectionPeriod is the default reconnection period for OTLP gRPC connection.
	DefaultOTLPReconnectionPeriod = 10 * time.Second

	// DefaultOTLPRetryMaxElapsedTime is the maximum total time for OTLP exporter retries.
	DefaultOTLPRetryMaxElapsedTime = 1 * time.Minute
)

// TracerConfig contains tracing configuration.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	SamplingRate   float64
	Enabled        bool
}

// Tracer wraps OpenTelemetry tracing functionality.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracerConfig
}

// NewTracer creates a new tracer. A disabled tracer uses the global
// provider, which is a no-op unless something else installed one. An
// enabled tracer without an endpoint records spans that are never exported.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{
			config: cfg,
			tracer: otel.Tracer(cfg.ServiceName),
		}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(createSampler(cfg.SamplingRate))),
		sdktrace.WithResource(res),
	}

	if cfg.OTLPEndpoint != "" {
		exporter, err := newOTLPExporter(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		config:   cfg,
	}, nil
}

func newOTLPExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(DefaultOTLPTimeout),
		otlptracegrpc.WithReconnectionPeriod(DefaultOTLPReconnectionPeriod),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
			MaxElapsedTime:  DefaultOTLPRetryMaxElapsedTime,
		}),
	)
}

// NewTracerWithProvider builds a Tracer on top of an existing provider.
func NewTracerWithProvider(provider *sdktrace.TracerProvider, serviceName string) *Tracer {
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   TracerConfig{ServiceName: serviceName, Enabled: true},
	}
}

// createSampler creates a sampler based on the sampling rate.
func createSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown shuts down the tracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// StartSpan starts a new span.
func (t *Tracer) StartSpan(
	ctx context.Context,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// TracingMiddleware returns a middleware that starts a server span per
// request, continuing any trace context the caller propagated.
func TracingMiddleware(tracer *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.StartSpan(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(r.UserAgent()),
					semconv.ServerAddress(r.Host),
				),
			)
			defer span.End()

			sc := span.SpanContext()
			if sc.HasTraceID() {
				ctx = ContextWithTraceID(ctx, sc.TraceID().String())
			}
			if sc.HasSpanID() {
				ctx = ContextWithSpanID(ctx, sc.SpanID().String())
			}

			rw := &tracingResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(semconv.HTTPResponseStatusCode(rw.status))
			if rw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.status))
			}
		})
	}
}

type tracingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *tracingResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher interface for streaming support.
func (rw *tracingResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// InjectTraceContext injects trace context into outgoing request headers.
func InjectTraceContext(ctx context.Context, r *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(r.Header))
}
