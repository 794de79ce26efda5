package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/vyrodovalexey/portalgate/internal/gate"
)

// GatePolicyCheck reports degraded while either gate setting is missing.
// The policy is immutable, so the result never changes for a process.
func GatePolicyCheck(policy gate.Policy) CheckFunc {
	var missing []string
	if !policy.HasExpectedSignature() {
		missing = append(missing, "portal agent")
	}
	if !policy.HasIntegrityKey() {
		missing = append(missing, "salt key")
	}

	result := Check{Status: StatusHealthy}
	if len(missing) > 0 {
		result = Check{
			Status:  StatusDegraded,
			Message: "not configured: " + strings.Join(missing, ", "),
		}
	}

	return func() Check {
		return result
	}
}

// TCPCheck dials address and reports degraded when the connection fails.
// It is used for the billing upstream, whose outage should be visible
// without pulling the gate out of rotation.
func TCPCheck(address string, timeout time.Duration) CheckFunc {
	return func() Check {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return Check{Status: StatusDegraded, Message: fmt.Sprintf("failed to connect: %v", err)}
		}
		_ = conn.Close()

		return Check{Status: StatusHealthy}
	}
}

// UpstreamAddress returns the host:port to dial for rawURL, filling in the
// scheme's default port.
func UpstreamAddress(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}

	return net.JoinHostPort(u.Hostname(), port), nil
}
