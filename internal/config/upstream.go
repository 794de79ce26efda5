package config

import "time"

// Circuit breaker defaults.
const (
	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerTimeout   = 30 * time.Second
)

// UpstreamConfig describes the billing backend requests are forwarded to.
type UpstreamConfig struct {
	URL string `yaml:"url" json:"url"`

	// Timeout bounds the wait for the upstream's response headers.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures the breaker in front of the upstream.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Threshold is the minimum number of requests in a window before the
	// failure ratio can open the breaker.
	Threshold int `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// Timeout is both the counting window and how long the breaker stays open.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// IsEnabled reports whether the breaker is configured and enabled.
func (c *CircuitBreakerConfig) IsEnabled() bool {
	return c != nil && c.Enabled
}

func (u *UpstreamConfig) applyDefaults() {
	if u.Timeout == 0 {
		u.Timeout = Duration(DefaultUpstreamTimeout)
	}
	if cb := u.CircuitBreaker; cb != nil {
		if cb.Threshold == 0 {
			cb.Threshold = DefaultCircuitBreakerThreshold
		}
		if cb.Timeout == 0 {
			cb.Timeout = Duration(DefaultCircuitBreakerTimeout)
		}
	}
}
