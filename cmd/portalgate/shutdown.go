package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// runGateway starts the gateway and blocks until SIGINT or SIGTERM.
func runGateway(app *application, logger observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.gateway.Start(ctx); err != nil {
		return err
	}

	if err := startMetricsServer(app, logger); err != nil {
		shutdown(app, logger)
		return err
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdown(app, logger)
	return nil
}

// shutdown fails readiness, keeps serving for the configured drain delay,
// then stops the gateway and flushes telemetry within shutdownTimeout.
func shutdown(app *application, logger observability.Logger) {
	app.healthChecker.SetDraining(true)
	waitForDrain(app.config.Spec.Listener.DrainDelay.Duration(), logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.gateway.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	if app.metricsServer != nil {
		logger.Info("stopping metrics server")
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("gateway stopped")
}

// waitForDrain gives load balancers time to observe the failing readiness
// probe while the listener still accepts requests.
func waitForDrain(delay time.Duration, logger observability.Logger) {
	if delay <= 0 {
		return
	}

	logger.Info("draining before stop", observability.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	<-timer.C
}
