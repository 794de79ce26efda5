package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors for proxy operations.
var (
	// ErrInvalidTargetURL indicates that the upstream URL is invalid.
	ErrInvalidTargetURL = errors.New("invalid target URL")

	// ErrUpstreamTimeout indicates that the upstream request timed out.
	ErrUpstreamTimeout = errors.New("upstream request timed out")

	// ErrUpstreamUnavailable indicates that the upstream is unavailable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ProxyError represents a failed upstream call.
type ProxyError struct {
	Target string
	Cause  error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy error target=%s: %v", e.Target, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}
