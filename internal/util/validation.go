package util

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
)

// headerNameRegex validates HTTP header names according to RFC 7230.
var headerNameRegex = regexp.MustCompile(`^[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+$`)

// ValidateURL validates an http or https URL.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: URL cannot be empty", ErrInvalidInput)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %w", ErrInvalidInput, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: URL scheme must be http or https, got: %q", ErrInvalidInput, parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%w: URL must have a host", ErrInvalidInput)
	}

	return nil
}

// ValidateHeaderName validates an HTTP header name.
func ValidateHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: header name cannot be empty", ErrInvalidInput)
	}

	if !headerNameRegex.MatchString(name) {
		return fmt.Errorf("%w: invalid header name: %s", ErrInvalidInput, name)
	}

	return nil
}

// ValidatePort validates a port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got: %d", ErrInvalidInput, port)
	}
	return nil
}

// ValidateBindAddress validates a listener bind address. Empty means all
// interfaces.
func ValidateBindAddress(addr string) error {
	if addr == "" || addr == "localhost" {
		return nil
	}
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("%w: invalid bind address: %s", ErrInvalidInput, addr)
	}
	return nil
}

// ValidateRatio validates a value in the closed interval [0, 1].
func ValidateRatio(value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("%w: value must be between 0 and 1, got: %g", ErrInvalidInput, value)
	}
	return nil
}
