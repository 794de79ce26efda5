package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/vyrodovalexey/portalgate/internal/config"
	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// maxHeaderBytes caps request header size.
const maxHeaderBytes = 1 << 20

// Listener represents an HTTP listener.
type Listener struct {
	config  config.ListenerConfig
	server  *http.Server
	handler http.Handler
	logger  observability.Logger
	addr    atomic.Value
	running atomic.Bool
	done    chan struct{}
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a new listener.
func NewListener(
	cfg config.ListenerConfig,
	handler http.Handler,
	opts ...ListenerOption,
) (*Listener, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	l := &Listener{
		config:  cfg,
		handler: handler,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Name returns the listener name.
func (l *Listener) Name() string {
	return l.config.Name
}

// Port returns the configured listener port.
func (l *Listener) Port() int {
	return l.config.Port
}

// Address returns the configured listener address.
func (l *Listener) Address() string {
	bind := l.config.Bind
	if bind == "" {
		bind = "0.0.0.0"
	}
	return net.JoinHostPort(bind, strconv.Itoa(l.config.Port))
}

// Addr returns the address actually bound, which differs from Address
// when port 0 was requested.
func (l *Listener) Addr() string {
	if v, ok := l.addr.Load().(string); ok {
		return v
	}
	return ""
}

// Start binds the address and serves in the background.
func (l *Listener) Start(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrListenerRunning, l.config.Name)
	}

	addr := l.Address()
	timeouts := l.config.Timeouts

	l.server = &http.Server{
		Addr:              addr,
		Handler:           l.handler,
		ReadTimeout:       timeouts.GetEffectiveReadTimeout(),
		ReadHeaderTimeout: timeouts.GetEffectiveReadHeaderTimeout(),
		WriteTimeout:      timeouts.GetEffectiveWriteTimeout(),
		IdleTimeout:       timeouts.GetEffectiveIdleTimeout(),
		MaxHeaderBytes:    maxHeaderBytes,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		l.running.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l.addr.Store(ln.Addr().String())
	l.done = make(chan struct{})

	l.logger.Info("listener started",
		observability.String("name", l.config.Name),
		observability.String("address", ln.Addr().String()),
	)

	go l.serve(ln)

	return nil
}

// serve starts serving requests.
func (l *Listener) serve(ln net.Listener) {
	defer close(l.done)

	if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("listener error",
			observability.String("name", l.config.Name),
			observability.Error(err),
		)
	}
	l.running.Store(false)
}

// Stop stops the listener gracefully.
func (l *Listener) Stop(ctx context.Context) error {
	if l.server == nil || l.done == nil {
		return nil
	}

	l.logger.Info("stopping listener",
		observability.String("name", l.config.Name),
	)

	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close listener: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown listener gracefully: %w", err)
	}

	<-l.done

	l.logger.Info("listener stopped",
		observability.String("name", l.config.Name),
	)

	return nil
}

// IsRunning returns true if the listener is running.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}
