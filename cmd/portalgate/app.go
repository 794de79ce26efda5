package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/portalgate/internal/config"
	"github.com/vyrodovalexey/portalgate/internal/gate"
	"github.com/vyrodovalexey/portalgate/internal/gateway"
	"github.com/vyrodovalexey/portalgate/internal/health"
	"github.com/vyrodovalexey/portalgate/internal/middleware"
	"github.com/vyrodovalexey/portalgate/internal/observability"
	"github.com/vyrodovalexey/portalgate/internal/proxy"
)

const (
	metricsNamespace = "portalgate"
	shutdownTimeout  = 30 * time.Second
	upstreamCheckTTL = 2 * time.Second
)

// application holds all application components.
type application struct {
	gateway       *gateway.Gateway
	healthChecker *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	metricsServer *http.Server
	config        *config.GatewayConfig
}

// initApplication wires the gate, the upstream proxy and the ambient
// middleware into a gateway.
func initApplication(
	ctx context.Context,
	cfg *config.GatewayConfig,
	logger observability.Logger,
) (*application, error) {
	metrics := observability.NewMetrics(metricsNamespace)
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := initTracer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	policy := cfg.Spec.Gate.Policy()
	requestGate := gate.New(policy,
		gate.WithLogger(logger),
		gate.WithHeader(cfg.Spec.Gate.SignatureHeader()),
		gate.WithMetrics(gate.NewMetrics(metricsNamespace, metrics.Registry())),
	)

	upstream, err := proxy.NewReverseProxy(cfg.Spec.Upstream.URL,
		proxy.WithProxyLogger(logger),
		proxy.WithResponseHeaderTimeout(cfg.Spec.Upstream.Timeout.Duration()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream proxy: %w", err)
	}

	healthChecker := health.NewChecker(version,
		health.WithMetrics(health.NewMetrics(metricsNamespace, metrics.Registry())),
	)
	healthChecker.RegisterCheck("gate_policy", health.GatePolicyCheck(policy))
	if addr, err := health.UpstreamAddress(cfg.Spec.Upstream.URL); err == nil {
		healthChecker.RegisterCheck("upstream", health.TCPCheck(addr, upstreamCheckTTL))
	}

	handler := buildMiddlewareChain(wrapUpstream(cfg.Spec.Upstream, upstream, logger, metrics), requestGate, logger, metrics, tracer)

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithHandler(handler),
		gateway.WithShutdownTimeout(shutdownTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &application{
		gateway:       gw,
		healthChecker: healthChecker,
		metrics:       metrics,
		tracer:        tracer,
		config:        cfg,
	}, nil
}

// wrapUpstream puts the circuit breaker in front of the proxy when enabled.
func wrapUpstream(
	cfg config.UpstreamConfig,
	upstream http.Handler,
	logger observability.Logger,
	metrics *observability.Metrics,
) http.Handler {
	breaker := cfg.CircuitBreaker
	if !breaker.IsEnabled() {
		return upstream
	}

	cb := middleware.NewCircuitBreaker("upstream",
		breaker.Threshold,
		breaker.Timeout.Duration(),
		middleware.WithCircuitBreakerLogger(logger),
		middleware.WithCircuitBreakerMetrics(
			middleware.NewCircuitBreakerMetrics(metricsNamespace, metrics.Registry()),
		),
	)
	return middleware.CircuitBreakerMiddleware(cb)(upstream)
}

// initTracer initializes the tracer.
func initTracer(ctx context.Context, cfg *config.GatewayConfig) (*observability.Tracer, error) {
	tracing := cfg.Spec.Observability.Tracing

	return observability.NewTracer(ctx, observability.TracerConfig{
		ServiceName:    tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   tracing.OTLPEndpoint,
		SamplingRate:   tracing.GetSamplingRate(),
		Enabled:        tracing.Enabled,
	})
}

// buildMiddlewareChain builds the middleware chain.
// The execution order (outermost executes first):
// Recovery -> RequestID -> Logging -> Tracing -> Metrics -> Gate -> [breaker] -> [proxy]
//
// The gate sits innermost so that rejected requests still get a request
// id, an access log line, a span and request metrics.
func buildMiddlewareChain(
	upstream http.Handler,
	requestGate *gate.Gate,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) http.Handler {
	h := gate.Middleware(requestGate)(upstream)
	h = observability.MetricsMiddleware(metrics)(h)
	h = observability.TracingMiddleware(tracer)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(logger)(h)

	return h
}
