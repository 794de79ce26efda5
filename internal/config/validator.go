package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/portalgate/internal/util"
)

// ValidationError represents a configuration validation finding.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Is makes ValidationErrors match util.ErrConfigInvalid.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration. Errors stop startup; warnings
// are logged and startup continues.
type Validator struct {
	errors   ValidationErrors
	warnings ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates a gateway configuration and returns its warnings.
func ValidateConfig(config *GatewayConfig) (ValidationErrors, error) {
	v := NewValidator()
	err := v.Validate(config)
	return v.Warnings(), err
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *GatewayConfig) error {
	v.errors = nil
	v.warnings = nil

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(config)
	v.validateListener(&config.Spec.Listener)
	v.validateUpstream(&config.Spec.Upstream)
	v.validateGate(&config.Spec.Gate)
	if config.Spec.Observability != nil {
		v.validateObservability(config.Spec.Observability, config.Spec.Listener.Port)
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// Warnings returns the warnings from the last Validate call.
func (v *Validator) Warnings() ValidationErrors {
	return v.warnings
}

func (v *Validator) validateRoot(config *GatewayConfig) {
	if config.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if config.APIVersion != APIVersion {
		v.addError("apiVersion", fmt.Sprintf("apiVersion must be '%s'", APIVersion))
	}

	if config.Kind == "" {
		v.addError("kind", "kind is required")
	} else if config.Kind != Kind {
		v.addError("kind", fmt.Sprintf("kind must be '%s'", Kind))
	}

	if config.Metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

func (v *Validator) validateListener(l *ListenerConfig) {
	if err := util.ValidatePort(l.Port); err != nil {
		v.addError("spec.listener.port", err.Error())
	}
	if err := util.ValidateBindAddress(l.Bind); err != nil {
		v.addError("spec.listener.bind", err.Error())
	}
	if t := l.Timeouts; t != nil {
		for path, d := range map[string]Duration{
			"readTimeout":       t.ReadTimeout,
			"readHeaderTimeout": t.ReadHeaderTimeout,
			"writeTimeout":      t.WriteTimeout,
			"idleTimeout":       t.IdleTimeout,
		} {
			if d < 0 {
				v.addError("spec.listener.timeouts."+path, "timeout cannot be negative")
			}
		}
	}
	if l.DrainDelay < 0 {
		v.addError("spec.listener.drainDelay", "drain delay cannot be negative")
	}
}

func (v *Validator) validateUpstream(u *UpstreamConfig) {
	if err := util.ValidateURL(u.URL); err != nil {
		v.addError("spec.upstream.url", err.Error())
	}
	if u.Timeout < 0 {
		v.addError("spec.upstream.timeout", "timeout cannot be negative")
	}
	if cb := u.CircuitBreaker; cb.IsEnabled() {
		if cb.Threshold < 0 {
			v.addError("spec.upstream.circuitBreaker.threshold", "threshold cannot be negative")
		}
		if cb.Timeout < 0 {
			v.addError("spec.upstream.circuitBreaker.timeout", "timeout cannot be negative")
		}
	}
}

func (v *Validator) validateGate(g *GateConfig) {
	if g.Header != "" {
		if err := util.ValidateHeaderName(g.Header); err != nil {
			v.addError("spec.gate.header", err.Error())
		}
	}
	if g.PortalCGIAgentHeader == "" {
		v.addWarning("spec.gate.portalCGIAgentHeader",
			"no portal agent configured, every client is allowed through")
	}
	if g.SaltKey == "" {
		v.addWarning("spec.gate.saltKey",
			"no salt key configured, request tampering cannot be validated")
	}
}

func (v *Validator) validateObservability(o *ObservabilityConfig, listenerPort int) {
	if m := o.Metrics; m != nil && m.Enabled {
		if err := util.ValidatePort(m.Port); err != nil {
			v.addError("spec.observability.metrics.port", err.Error())
		} else if m.Port == listenerPort {
			v.addError("spec.observability.metrics.port", "port conflicts with the listener port")
		}
		if !strings.HasPrefix(m.Path, "/") {
			v.addError("spec.observability.metrics.path", "path must start with '/'")
		}
	}
	if t := o.Tracing; t != nil {
		if err := util.ValidateRatio(t.GetSamplingRate()); err != nil {
			v.addError("spec.observability.tracing.samplingRate", err.Error())
		}
	}
	if l := o.Logging; l != nil {
		switch l.Level {
		case "", "debug", "info", "warn", "error":
		default:
			v.addError("spec.observability.logging.level", "level must be one of debug, info, warn, error")
		}
		switch l.Format {
		case "", "json", "console":
		default:
			v.addError("spec.observability.logging.format", "format must be json or console")
		}
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

// addWarning adds a validation warning.
func (v *Validator) addWarning(path, message string) {
	v.warnings = append(v.warnings, ValidationError{Path: path, Message: message})
}
