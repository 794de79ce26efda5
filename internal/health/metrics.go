package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for health checks.
type Metrics struct {
	probesTotal *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
}

// NewMetrics creates health metrics registered with reg. A nil reg leaves
// them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "portalgate"
	}
	factory := promauto.With(reg)

	m := &Metrics{
		probesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "probes_total",
				Help:      "Total number of health probes served",
			},
			[]string{"type"},
		),
		checkStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Last health check status (1=healthy, 0.5=degraded, 0=unhealthy)",
			},
			[]string{"check"},
		),
	}

	for _, probe := range []string{"health", "readiness", "liveness"} {
		m.probesTotal.WithLabelValues(probe)
	}

	return m
}

func (m *Metrics) recordProbe(probe string) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(probe).Inc()
}

func (m *Metrics) recordCheck(check string, status Status) {
	if m == nil {
		return
	}
	m.checkStatus.WithLabelValues(check).Set(statusValue(status))
}

func statusValue(status Status) float64 {
	switch status {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}
