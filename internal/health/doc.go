// Package health provides the health, readiness and liveness endpoints
// served next to /metrics.
//
// Readiness aggregates registered checks: any unhealthy check makes the
// instance unhealthy (503); degraded checks keep it serving (200) but are
// reported. An incomplete gate policy is reported as degraded, since the
// gate still fails open.
//
//	checker := health.NewChecker(version, health.WithMetrics(m))
//	checker.RegisterCheck("gate_policy", health.GatePolicyCheck(policy))
//	checker.RegisterRoutes(mux)
package health
