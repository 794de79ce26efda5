// Package gate implements the portal agent gate that sits in front of the
// billing handler.
//
// The gate performs one static check per request: the configured portal
// agent string must appear, byte for byte, among the values of the client
// signature header (User-Agent by default). Requests that fail the check are
// answered with a RejectionPayload carrying BrowserAgentNotMatch and never
// reach the downstream handler.
//
// The gate fails open. When no portal agent is configured every request is
// allowed and a warning is logged for each one. A missing salt key is also
// warned about on every request; the key itself is not consulted.
//
// # Usage
//
//	g := gate.New(policy,
//	    gate.WithLogger(logger),
//	    gate.WithMetrics(gate.NewMetrics("portalgate", registry)),
//	)
//	handler := gate.Middleware(g)(billing)
package gate
