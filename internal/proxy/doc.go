// Package proxy forwards requests that passed the gate to the billing
// upstream.
//
// The request context is passed through unchanged, so cancellation and
// deadlines set by the server or by earlier middleware reach the upstream
// call as they are.
package proxy
