// Package config provides configuration types and loading for portalgate.
//
// The configuration is a single Kubernetes-style YAML document:
//
//	apiVersion: portalgate.io/v1
//	kind: PortalGate
//	metadata:
//	  name: billing-gate
//	spec:
//	  listener:
//	    port: 8080
//	  upstream:
//	    url: http://billing:8080
//	  gate:
//	    header: User-Agent
//
// ${VAR} and ${VAR:-default} references are replaced from the environment
// before parsing; $$ produces a literal dollar sign. After parsing, the
// PortalCGIAgentHeader and SaltKey environment variables override the gate
// settings from the file. Secrets should come from those variables rather
// than from ${VAR} references: a substituted value is parsed as YAML and
// characters such as ':', '*' or '{' would change its meaning.
//
// Configuration is read once at startup. Missing gate settings are reported
// as warnings, never as errors: the gate fails open.
package config
