package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrConfigInvalid = errors.New("invalid configuration")
	ErrInvalidInput  = errors.New("invalid input")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "config error: " + e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrConfigInvalid, another ConfigError, or
// matches the cause.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError wrapping cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}
