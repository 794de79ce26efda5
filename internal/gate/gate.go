package gate

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// Log messages emitted by the gate.
const (
	msgNoSaltKey = "no salt key configured, " +
		"request tampering cannot be validated"
	msgNoPortalAgent = "no portal agent configured, " +
		"any client can reach the billing endpoint"
	msgAgentMismatch = "portal agent does not match, " +
		"billing endpoint requested by an unexpected client"
	msgUnhandled = "unhandled request"
)

// Gate applies a Policy to inbound requests.
//
// A Gate holds no per-request state and is safe for concurrent use.
type Gate struct {
	policy  Policy
	header  string
	logger  observability.Logger
	metrics *Metrics
}

// Option is a functional option for configuring the gate.
type Option func(*Gate)

// WithLogger sets the logger for the gate.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics for the gate.
func WithMetrics(metrics *Metrics) Option {
	return func(g *Gate) {
		g.metrics = metrics
	}
}

// WithHeader sets the signature header name. An empty name keeps the
// default.
func WithHeader(header string) Option {
	return func(g *Gate) {
		if header != "" {
			g.header = header
		}
	}
}

// New creates a new Gate for policy.
func New(policy Policy, opts ...Option) *Gate {
	g := &Gate{
		policy: policy,
		header: DefaultSignatureHeader,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.metrics == nil {
		g.metrics = NewMetrics("", nil)
	}

	return g
}

// Policy returns the policy the gate enforces.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Header returns the signature header name.
func (g *Gate) Header() string {
	return g.header
}

// Check evaluates req and emits the log entries that go with the decision.
//
// Missing settings are reported on every call, before the signature is
// looked at. A rejection is logged as critical with the full list of
// signature values.
func (g *Gate) Check(ctx context.Context, req Request) Decision {
	logger := g.logger.WithContext(ctx)

	if !g.policy.HasIntegrityKey() {
		logger.Warn(msgNoSaltKey)
		g.metrics.configWarnings.WithLabelValues(settingSaltKey).Inc()
	}

	if !g.policy.HasExpectedSignature() {
		logger.Warn(msgNoPortalAgent)
		g.metrics.configWarnings.WithLabelValues(settingPortalAgent).Inc()
	}

	decision := Evaluate(req, g.policy)

	label := decisionAllowed
	switch {
	case !decision.Allowed():
		label = decisionRejected
		logger.Critical(msgAgentMismatch, append([]observability.Field{
			observability.String("header", g.header),
			observability.Strings("values", req.Signatures),
		}, observability.RequestFields(req.Method, req.Path, req.RawQuery)...)...)
	case !g.policy.HasExpectedSignature():
		label = decisionFailOpen
	}
	g.metrics.decisions.WithLabelValues(label).Inc()

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("portalgate.decision", label))
	if !decision.Allowed() {
		span.AddEvent("portal agent mismatch", trace.WithAttributes(
			attribute.String("portalgate.reason", string(decision.Reason())),
		))
	}

	return decision
}

// Observe inspects the downstream status of an allowed request and warns
// when the downstream had no handler for it.
func (g *Gate) Observe(ctx context.Context, req Request, status int) {
	if status != http.StatusNotFound {
		return
	}

	g.logger.WithContext(ctx).Warn(msgUnhandled,
		observability.RequestFields(req.Method, req.Path, req.RawQuery)...)
	g.metrics.unhandled.WithLabelValues(req.Method).Inc()
}
