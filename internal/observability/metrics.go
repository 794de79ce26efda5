package observability

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric the process exports.
const DefaultNamespace = "portalgate"

// Metrics owns the process registry and the HTTP front-door metrics. Other
// packages register their collectors with Registry.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	respSize  *prometheus.HistogramVec
	inFlight  *prometheus.GaugeVec
	buildInfo *prometheus.GaugeVec
}

// NewMetrics creates the registry together with the Go and process
// collectors and the HTTP metrics under <namespace>_http_*.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	labels := []string{"method", "status"}
	m := &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served, including gate rejections",
		}, labels),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, labels),
		respSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		}, labels),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		}, []string{"method"}),
		buildInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information, always 1",
		}, []string{"version", "commit", "build_time"}),
	}

	factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Process start time in unix seconds",
	}).SetToCurrentTime()

	return m
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration, size int64) {
	code := strconv.Itoa(status)

	m.requests.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method, code).Observe(duration.Seconds())
	m.respSize.WithLabelValues(method, code).Observe(float64(size))
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware returns a middleware that records request metrics.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			inFlight := metrics.inFlight.WithLabelValues(r.Method)
			inFlight.Inc()
			defer inFlight.Dec()

			rw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			metrics.RecordRequest(r.Method, rw.status, time.Since(start), int64(rw.size))
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush implements http.Flusher interface for streaming support.
func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker interface.
func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
