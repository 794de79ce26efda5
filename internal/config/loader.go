package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/portalgate/internal/util"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// escapedDollar stands in for $$ while substituting.
const escapedDollar = "\x00ESCAPED_DOLLAR\x00"

// Loader handles configuration loading from files and readers.
type Loader struct {
	lookupEnv func(string) (string, bool)
}

// LoaderOption is a functional option for the Loader.
type LoaderOption func(*Loader)

// WithLookupEnv replaces os.LookupEnv as the source of environment values.
func WithLookupEnv(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) {
		l.lookupEnv = fn
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadConfig loads configuration from a file path.
func LoadConfig(path string) (*GatewayConfig, error) {
	return NewLoader().Load(path)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*GatewayConfig, error) {
	return NewLoader().LoadFromReader(r)
}

// Load loads configuration from a file path.
func (l *Loader) Load(path string) (*GatewayConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return l.parseConfig(data)
}

// LoadFromReader loads configuration from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*GatewayConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parseConfig(data)
}

// parseConfig substitutes, parses, overrides and defaults, in that order.
func (l *Loader) parseConfig(data []byte) (*GatewayConfig, error) {
	content := l.substituteEnvVars(string(data))

	var config GatewayConfig
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, util.NewConfigErrorWithCause("", "failed to parse YAML", err)
	}

	l.applyEnvOverrides(&config)
	config.ApplyDefaults()

	return &config, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", escapedDollar)

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		if value, exists := l.lookupEnv(submatches[1]); exists {
			return value
		}
		if len(submatches) >= 3 {
			return submatches[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, escapedDollar, "$")
}

// applyEnvOverrides lets PortalCGIAgentHeader and SaltKey replace the file
// values. Empty variables are ignored.
func (l *Loader) applyEnvOverrides(config *GatewayConfig) {
	if v, ok := l.lookupEnv(EnvPortalCGIAgentHeader); ok && v != "" {
		config.Spec.Gate.PortalCGIAgentHeader = v
	}
	if v, ok := l.lookupEnv(EnvSaltKey); ok && v != "" {
		config.Spec.Gate.SaltKey = v
	}
}

// ResolveConfigPath resolves a configuration file path, checking common locations.
func ResolveConfigPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", util.NewConfigError("path", "config file not found: "+path)
	}

	if _, err := os.Stat(path); err == nil {
		return filepath.Abs(path)
	}

	commonPaths := []string{
		filepath.Join("configs", path),
		filepath.Join(string(filepath.Separator), "etc", "portalgate", path),
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", util.NewConfigError("path", "config file not found: "+path)
}
