package gate

import "slices"

// ResponseCode is the code carried by a RejectionPayload.
type ResponseCode string

const (
	// ResponseCodeBrowserAgentNotMatch is returned when no value of the
	// signature header equals the configured portal agent.
	ResponseCodeBrowserAgentNotMatch ResponseCode = "BrowserAgentNotMatch"
)

// Outcome is the kind of a Decision.
type Outcome int

const (
	// OutcomeAllow lets the request through to the downstream handler.
	OutcomeAllow Outcome = iota
	// OutcomeReject short-circuits the request with a rejection payload.
	OutcomeReject
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Decision is the result of evaluating one request.
type Decision struct {
	outcome Outcome
	reason  ResponseCode
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{outcome: OutcomeAllow}
}

// Reject returns a rejecting decision with the given reason.
func Reject(reason ResponseCode) Decision {
	return Decision{outcome: OutcomeReject, reason: reason}
}

// Outcome returns the decision kind.
func (d Decision) Outcome() Outcome {
	return d.outcome
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.outcome == OutcomeAllow
}

// Reason returns the rejection reason. It is empty for allowing decisions.
func (d Decision) Reason() ResponseCode {
	return d.reason
}

// String returns a short description of the decision.
func (d Decision) String() string {
	if d.Allowed() {
		return d.outcome.String()
	}
	return d.outcome.String() + "(" + string(d.reason) + ")"
}

// Evaluate decides whether req may proceed under policy. It has no side
// effects.
//
// Without a configured portal agent every request is allowed. Otherwise
// the request is allowed iff one of its signature values equals the portal
// agent exactly.
func Evaluate(req Request, policy Policy) Decision {
	expected, ok := policy.ExpectedSignature()
	if !ok {
		return Allow()
	}
	if slices.Contains(req.Signatures, expected) {
		return Allow()
	}
	return Reject(ResponseCodeBrowserAgentNotMatch)
}
