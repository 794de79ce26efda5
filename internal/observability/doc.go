// Package observability provides logging, metrics, and tracing
// functionality for portalgate.
//
// # Logging
//
// The Logger interface wraps zap. Besides the usual levels it offers
// Critical for security violations:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Critical("portal agent does not match",
//	    observability.Strings("values", values),
//	)
//
// # Metrics
//
// HTTP request metrics live in a dedicated Prometheus registry that
// also backs the /metrics endpoint:
//
//	metrics := observability.NewMetrics("portalgate")
//	handler := metrics.Handler()
//
// # Tracing
//
// OpenTelemetry tracing with OTLP gRPC export:
//
//	tracer, err := observability.NewTracer(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(ctx)
package observability
