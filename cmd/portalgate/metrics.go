package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/vyrodovalexey/portalgate/internal/config"
	"github.com/vyrodovalexey/portalgate/internal/health"
	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// Timeouts of the metrics and health server.
const (
	metricsReadTimeout       = 10 * time.Second
	metricsReadHeaderTimeout = 5 * time.Second
	metricsWriteTimeout      = 10 * time.Second
)

// createMetricsServer creates the server that exposes Prometheus metrics
// and the health probes side by side, away from the gated listener.
func createMetricsServer(
	cfg *config.MetricsConfig,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler())
	healthChecker.RegisterRoutes(mux)

	return &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           mux,
		ReadTimeout:       metricsReadTimeout,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
		WriteTimeout:      metricsWriteTimeout,
	}
}

// startMetricsServer binds the metrics port and serves it in the
// background. Binding happens synchronously so a taken port fails startup.
func startMetricsServer(app *application, logger observability.Logger) error {
	m := app.config.Spec.Observability.Metrics
	if m == nil || !m.Enabled {
		return nil
	}

	server := createMetricsServer(m, app.metrics, app.healthChecker)
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind metrics server: %w", err)
	}
	app.metricsServer = server

	logger.Info("metrics server started",
		observability.String("address", ln.Addr().String()),
		observability.String("metrics_path", m.Path),
	)

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", observability.Error(err))
		}
	}()

	return nil
}
