package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for the decisions counter.
const (
	decisionAllowed  = "allowed"
	decisionFailOpen = "fail_open"
	decisionRejected = "rejected"
)

// Label values for the config warnings counter.
const (
	settingPortalAgent = "portal_agent"
	settingSaltKey     = "salt_key"
)

// Metrics holds Prometheus metrics for gate decisions.
type Metrics struct {
	decisions      *prometheus.CounterVec
	configWarnings *prometheus.CounterVec
	unhandled      *prometheus.CounterVec
}

// NewMetrics creates gate metrics and registers them with reg. A nil reg
// leaves the collectors unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "portalgate"
	}
	factory := promauto.With(reg)

	m := &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "decisions_total",
				Help: "Total number of gate " +
					"decisions by result",
			},
			[]string{"decision"},
		),
		configWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "config_warnings_total",
				Help: "Total number of requests " +
					"evaluated with a missing gate setting",
			},
			[]string{"setting"},
		),
		unhandled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "unhandled_requests_total",
				Help: "Total number of allowed " +
					"requests the downstream answered with 404",
			},
			[]string{"method"},
		),
	}

	for _, d := range []string{decisionAllowed, decisionFailOpen, decisionRejected} {
		m.decisions.WithLabelValues(d)
	}
	for _, s := range []string{settingPortalAgent, settingSaltKey} {
		m.configWarnings.WithLabelValues(s)
	}

	return m
}
