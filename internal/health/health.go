package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the service is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the service is degraded but operational.
	StatusDegraded Status = "degraded"
)

// Endpoint paths.
const (
	PathHealth = "/health"
	PathReady  = "/ready"
	PathLive   = "/live"
)

const contentTypeJSON = "application/json"

// drainingCheck is the readiness entry reported while shutting down.
const drainingCheck = "draining"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Check represents an individual health check result.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func() Check

// Checker provides health and readiness checking functionality.
type Checker struct {
	version   string
	startTime time.Time
	checks    map[string]CheckFunc
	mu        sync.RWMutex
	draining  atomic.Bool
	metrics   *Metrics
}

// Option configures a Checker.
type Option func(*Checker)

// WithMetrics records check results in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// NewChecker creates a new health checker.
func NewChecker(version string, opts ...Option) *Checker {
	c := &Checker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterCheck registers a health check function.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes a health check function.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// SetDraining marks the instance as shutting down. Readiness reports
// unhealthy from then on so load balancers stop sending traffic.
func (c *Checker) SetDraining(draining bool) {
	c.draining.Store(draining)
}

// Health returns the health status.
func (c *Checker) Health() HealthResponse {
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Readiness returns the readiness status.
func (c *Checker) Readiness() ReadinessResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()

	response := ReadinessResponse{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check, len(c.checks)+1),
		Timestamp: time.Now(),
	}

	for name, checkFunc := range c.checks {
		check := checkFunc()
		response.Checks[name] = check
		c.metrics.recordCheck(name, check.Status)

		if check.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if check.Status == StatusDegraded && response.Status != StatusUnhealthy {
			response.Status = StatusDegraded
		}
	}

	if c.draining.Load() {
		response.Checks[drainingCheck] = Check{Status: StatusUnhealthy, Message: "shutting down"}
		response.Status = StatusUnhealthy
	}

	c.metrics.recordCheck("overall", response.Status)

	return response
}

// HealthHandler returns an HTTP handler for the health endpoint.
func (c *Checker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c.metrics.recordProbe("health")
		writeJSON(w, http.StatusOK, c.Health())
	}
}

// ReadinessHandler returns an HTTP handler for the readiness endpoint.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c.metrics.recordProbe("readiness")
		response := c.Readiness()

		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, response)
	}
}

// LivenessHandler returns an HTTP handler for the liveness endpoint (simple ping).
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c.metrics.recordProbe("liveness")
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// RegisterRoutes mounts the three endpoints on mux.
func (c *Checker) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(PathHealth, c.HealthHandler())
	mux.Handle(PathReady, c.ReadinessHandler())
	mux.Handle(PathLive, c.LivenessHandler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
