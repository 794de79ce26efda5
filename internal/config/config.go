package config

import (
	"fmt"
	"time"

	"github.com/vyrodovalexey/portalgate/internal/gate"
)

// Document identity.
const (
	APIVersion = "portalgate.io/v1"
	Kind       = "PortalGate"
)

// Defaults.
const (
	DefaultListenerName      = "http"
	DefaultListenerPort      = 8080
	DefaultReadTimeout       = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultUpstreamTimeout   = 30 * time.Second
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultServiceName       = "portalgate"
	DefaultSamplingRate      = 1.0
)

// GatewayConfig is the root configuration document.
type GatewayConfig struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion"`
	Kind       string      `yaml:"kind" json:"kind"`
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Spec       GatewaySpec `yaml:"spec" json:"spec"`
}

// Metadata identifies the gateway instance.
type Metadata struct {
	Name        string            `yaml:"name" json:"name"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// GatewaySpec holds the gateway settings.
type GatewaySpec struct {
	Listener      ListenerConfig       `yaml:"listener" json:"listener"`
	Upstream      UpstreamConfig       `yaml:"upstream" json:"upstream"`
	Gate          GateConfig           `yaml:"gate" json:"gate"`
	Observability *ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *GatewayConfig {
	cfg := &GatewayConfig{
		APIVersion: APIVersion,
		Kind:       Kind,
		Metadata:   Metadata{Name: DefaultServiceName},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their defaults.
func (c *GatewayConfig) ApplyDefaults() {
	l := &c.Spec.Listener
	if l.Name == "" {
		l.Name = DefaultListenerName
	}
	if l.Port == 0 {
		l.Port = DefaultListenerPort
	}
	if l.Timeouts == nil {
		l.Timeouts = DefaultListenerTimeouts()
	}

	c.Spec.Upstream.applyDefaults()

	if c.Spec.Gate.Header == "" {
		c.Spec.Gate.Header = gate.DefaultSignatureHeader
	}

	if c.Spec.Observability == nil {
		c.Spec.Observability = &ObservabilityConfig{}
	}
	c.Spec.Observability.applyDefaults()
}

// Address returns the listener's host:port.
func (l ListenerConfig) Address() string {
	return fmt.Sprintf("%s:%d", l.Bind, l.Port)
}
