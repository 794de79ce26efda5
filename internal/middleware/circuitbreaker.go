package middleware

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// errUpstreamFailure marks a 5xx upstream response as a breaker failure.
var errUpstreamFailure = errors.New("upstream responded with server error")

// CircuitBreakerMetrics holds Prometheus metrics for the upstream breaker.
type CircuitBreakerMetrics struct {
	state       prometheus.Gauge
	transitions *prometheus.CounterVec
	rejected    prometheus.Counter
}

// NewCircuitBreakerMetrics creates breaker metrics and registers them with reg.
func NewCircuitBreakerMetrics(namespace string, reg prometheus.Registerer) *CircuitBreakerMetrics {
	if namespace == "" {
		namespace = "portalgate"
	}
	factory := promauto.With(reg)

	return &CircuitBreakerMetrics{
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "circuit_breaker_state",
			Help:      "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "circuit_breaker_transitions_total",
				Help:      "Total number of upstream circuit breaker state transitions",
			},
			[]string{"from", "to"},
		),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "circuit_breaker_rejected_total",
			Help:      "Total number of requests rejected by the open upstream circuit breaker",
		}),
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker.
type CircuitBreaker struct {
	cb      *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics *CircuitBreakerMetrics
}

// CircuitBreakerOption is a functional option for configuring the circuit breaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithCircuitBreakerLogger sets the logger for the circuit breaker.
func WithCircuitBreakerLogger(logger observability.Logger) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// WithCircuitBreakerMetrics sets the metrics for the circuit breaker.
func WithCircuitBreakerMetrics(m *CircuitBreakerMetrics) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.metrics = m
	}
}

// NewCircuitBreaker creates a new circuit breaker. It opens once at least
// threshold requests were seen in the window and half of them failed, and
// stays open for timeout.
func NewCircuitBreaker(
	name string,
	threshold int,
	timeout time.Duration,
	opts ...CircuitBreakerOption,
) *CircuitBreaker {
	cb := &CircuitBreaker{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(cb)
	}

	thresholdU32 := safeIntToUint32(threshold)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: thresholdU32,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= thresholdU32 && failureRatio >= 0.5
		},
		OnStateChange: cb.onStateChange,
	}

	cb.cb = gobreaker.NewCircuitBreaker(settings)
	return cb
}

func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.logger.Warn("circuit breaker state change",
		observability.String("name", name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)

	if cb.metrics != nil {
		cb.metrics.state.Set(float64(to))
		cb.metrics.transitions.WithLabelValues(from.String(), to.String()).Inc()
	}
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// CircuitBreakerMiddleware returns a middleware that counts 5xx responses
// from next as failures and answers 503 while the breaker is open.
func CircuitBreakerMiddleware(cb *CircuitBreaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newStatusRecorder(w)

			_, err := cb.cb.Execute(func() (interface{}, error) {
				next.ServeHTTP(rw, r)

				if rw.status >= http.StatusInternalServerError {
					return nil, errUpstreamFailure
				}
				return nil, nil
			})

			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				if cb.metrics != nil {
					cb.metrics.rejected.Inc()
				}

				trace.SpanFromContext(r.Context()).AddEvent("circuit_breaker.rejected",
					trace.WithAttributes(attribute.String("circuit_breaker.state", cb.State().String())),
				)

				cb.logger.WithContext(r.Context()).Warn("circuit breaker rejected request",
					observability.String("method", r.Method),
					observability.String("path", r.URL.Path),
					observability.String("state", cb.State().String()),
				)

				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, ErrServiceUnavailable)
			}
		})
	}
}
