package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// Error response bodies.
const (
	errBadGateway     = `{"error":"bad gateway","message":"failed to proxy request"}`
	errGatewayTimeout = `{"error":"gateway timeout"}`
)

// statusClientClosedRequest is written when the client went away before
// the upstream answered. Nobody reads it, but it keeps access logs honest.
const statusClientClosedRequest = 499

// ReverseProxy forwards requests to a single upstream.
type ReverseProxy struct {
	target        *url.URL
	logger        observability.Logger
	transport     http.RoundTripper
	timeout       time.Duration
	flushInterval time.Duration
	proxy         *httputil.ReverseProxy
}

// ProxyOption is a functional option for configuring the proxy.
type ProxyOption func(*ReverseProxy)

// WithProxyLogger sets the logger for the proxy.
func WithProxyLogger(logger observability.Logger) ProxyOption {
	return func(p *ReverseProxy) {
		p.logger = logger
	}
}

// WithTransport sets the transport for the proxy. It takes precedence over
// WithResponseHeaderTimeout.
func WithTransport(transport http.RoundTripper) ProxyOption {
	return func(p *ReverseProxy) {
		p.transport = transport
	}
}

// WithResponseHeaderTimeout limits how long to wait for the upstream's
// response headers. Zero means no limit.
func WithResponseHeaderTimeout(timeout time.Duration) ProxyOption {
	return func(p *ReverseProxy) {
		p.timeout = timeout
	}
}

// WithFlushInterval sets the flush interval for streaming responses.
func WithFlushInterval(interval time.Duration) ProxyOption {
	return func(p *ReverseProxy) {
		p.flushInterval = interval
	}
}

// NewReverseProxy creates a reverse proxy to rawURL.
func NewReverseProxy(rawURL string, opts ...ProxyOption) (*ReverseProxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTargetURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTargetURL, rawURL)
	}

	p := &ReverseProxy{
		target:        target,
		logger:        observability.NopLogger(),
		flushInterval: -1,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.transport == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = p.timeout
		p.transport = transport
	}

	p.proxy = &httputil.ReverseProxy{
		Rewrite:       p.rewrite,
		Transport:     p.transport,
		FlushInterval: p.flushInterval,
		ErrorHandler:  p.errorHandler,
	}

	return p, nil
}

// Target returns the upstream URL.
func (p *ReverseProxy) Target() *url.URL {
	return p.target
}

// ServeHTTP implements http.Handler.
func (p *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

// rewrite points the outbound request at the upstream.
func (p *ReverseProxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.target)
	pr.SetXForwarded()
	observability.InjectTraceContext(pr.In.Context(), pr.Out)
}

// errorHandler maps upstream failures to gateway responses.
func (p *ReverseProxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	status, body, cause := classify(r.Context(), err)

	p.logger.WithContext(r.Context()).Error("proxy error",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Int("status", status),
		observability.Error(&ProxyError{Target: p.target.String(), Cause: errors.Join(cause, err)}),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != "" {
		_, _ = io.WriteString(w, body)
	}
}

// classify returns the status, body, and sentinel for an upstream error.
func classify(ctx context.Context, err error) (int, string, error) {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return statusClientClosedRequest, "", context.Canceled
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return http.StatusGatewayTimeout, errGatewayTimeout, ErrUpstreamTimeout
	default:
		return http.StatusBadGateway, errBadGateway, ErrUpstreamUnavailable
	}
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
