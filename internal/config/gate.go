package config

import "github.com/vyrodovalexey/portalgate/internal/gate"

// Environment variables that override the gate settings after the file is
// loaded.
const (
	EnvPortalCGIAgentHeader = "PortalCGIAgentHeader"
	EnvSaltKey              = "SaltKey"
)

// GateConfig holds the request gate settings. Empty strings mean the
// setting is not configured.
type GateConfig struct {
	// Header is the request header that carries the client signature.
	Header string `yaml:"header,omitempty" json:"header,omitempty"`

	// PortalCGIAgentHeader is the expected client signature.
	PortalCGIAgentHeader string `yaml:"portalCGIAgentHeader,omitempty" json:"portalCGIAgentHeader,omitempty"`

	// SaltKey is the integrity key. It is only checked for presence.
	SaltKey string `yaml:"saltKey,omitempty" json:"saltKey,omitempty"`
}

// Policy returns the immutable gate policy for these settings.
func (g GateConfig) Policy() gate.Policy {
	return gate.NewPolicy(optional(g.PortalCGIAgentHeader), optional(g.SaltKey))
}

// SignatureHeader returns the header name, falling back to User-Agent.
func (g GateConfig) SignatureHeader() string {
	if g.Header == "" {
		return gate.DefaultSignatureHeader
	}
	return g.Header
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
