// Package middleware provides the generic HTTP middleware that wraps the
// portal agent gate.
//
//   - Recovery: panic recovery with stack trace logging
//   - RequestID: request identifier injection
//   - Logging: one structured access log line per request
//   - CircuitBreakerMiddleware: gobreaker in front of the upstream proxy
//
// # Usage
//
// Middleware functions follow the standard Go pattern:
//
//	handler := middleware.Recovery(logger)(
//	    middleware.RequestID()(
//	        middleware.Logging(logger)(yourHandler),
//	    ),
//	)
package middleware
