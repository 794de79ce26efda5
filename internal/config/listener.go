package config

import "time"

// ListenerConfig is the inbound HTTP listener.
type ListenerConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Bind     string            `yaml:"bind,omitempty" json:"bind,omitempty"`
	Port     int               `yaml:"port" json:"port"`
	Timeouts *ListenerTimeouts `yaml:"timeouts,omitempty" json:"timeouts,omitempty"`

	// DrainDelay is how long the listener keeps serving after readiness
	// turns unhealthy on shutdown. Zero stops immediately.
	DrainDelay Duration `yaml:"drainDelay,omitempty" json:"drainDelay,omitempty"`
}

// ListenerTimeouts contains timeout configuration for the HTTP listener.
type ListenerTimeouts struct {
	ReadTimeout       Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
	WriteTimeout      Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout       Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
}

// DefaultListenerTimeouts returns the default listener timeout configuration.
func DefaultListenerTimeouts() *ListenerTimeouts {
	return &ListenerTimeouts{
		ReadTimeout:       Duration(DefaultReadTimeout),
		ReadHeaderTimeout: Duration(DefaultReadHeaderTimeout),
		WriteTimeout:      Duration(DefaultWriteTimeout),
		IdleTimeout:       Duration(DefaultIdleTimeout),
	}
}

// GetEffectiveReadTimeout returns the effective read timeout.
func (t *ListenerTimeouts) GetEffectiveReadTimeout() time.Duration {
	if t == nil || t.ReadTimeout == 0 {
		return DefaultReadTimeout
	}
	return t.ReadTimeout.Duration()
}

// GetEffectiveReadHeaderTimeout returns the effective read header timeout.
func (t *ListenerTimeouts) GetEffectiveReadHeaderTimeout() time.Duration {
	if t == nil || t.ReadHeaderTimeout == 0 {
		return DefaultReadHeaderTimeout
	}
	return t.ReadHeaderTimeout.Duration()
}

// GetEffectiveWriteTimeout returns the effective write timeout.
func (t *ListenerTimeouts) GetEffectiveWriteTimeout() time.Duration {
	if t == nil || t.WriteTimeout == 0 {
		return DefaultWriteTimeout
	}
	return t.WriteTimeout.Duration()
}

// GetEffectiveIdleTimeout returns the effective idle timeout.
func (t *ListenerTimeouts) GetEffectiveIdleTimeout() time.Duration {
	if t == nil || t.IdleTimeout == 0 {
		return DefaultIdleTimeout
	}
	return t.IdleTimeout.Duration()
}
