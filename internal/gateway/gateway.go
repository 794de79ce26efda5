package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/portalgate/internal/config"
	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// DefaultShutdownTimeout bounds Stop when the caller's context has no
// deadline.
const DefaultShutdownTimeout = 30 * time.Second

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway owns the gin engine and the public listener.
type Gateway struct {
	config    *config.GatewayConfig
	logger    observability.Logger
	handler   http.Handler
	engine    *gin.Engine
	listener  *Listener
	state     atomic.Int32
	startTime time.Time

	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithShutdownTimeout sets the shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// WithHandler sets the handler chain that serves every request.
func WithHandler(handler http.Handler) Option {
	return func(g *Gateway) {
		g.handler = handler
	}
}

// New creates a new Gateway instance.
func New(cfg *config.GatewayConfig, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	g := &Gateway{
		config:          cfg,
		logger:          observability.NopLogger(),
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.handler == nil {
		return nil, ErrNilHandler
	}

	g.engine = newEngine(g.handler)
	g.state.Store(int32(StateStopped))

	return g, nil
}

// newEngine mounts handler as the catch-all route.
func newEngine(handler http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = false

	// gin presets 404 for NoRoute and appends its own body to a bodiless
	// 404. Reset the status and flush the header so the response is
	// exactly what handler wrote, as on plain net/http.
	engine.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusOK)
		handler.ServeHTTP(c.Writer, c.Request)
		c.Writer.WriteHeaderNow()
	})

	return engine
}

// Start starts the gateway.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	g.logger.Info("starting gateway",
		observability.String("name", g.config.Metadata.Name),
	)

	listener, err := NewListener(g.config.Spec.Listener, g.engine, WithListenerLogger(g.logger))
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to create listener: %w", err)
	}

	if err := listener.Start(ctx); err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to start listener %s: %w", listener.Name(), err)
	}

	g.listener = listener
	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("name", g.config.Metadata.Name),
		observability.String("address", listener.Addr()),
	)

	return nil
}

// Stop stops the gateway gracefully, letting in-flight requests finish.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}

	g.logger.Info("stopping gateway",
		observability.String("name", g.config.Metadata.Name),
	)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	err := g.listener.Stop(ctx)
	g.state.Store(int32(StateStopped))

	if err != nil {
		return fmt.Errorf("failed to stop listener %s: %w", g.listener.Name(), err)
	}

	g.logger.Info("gateway stopped",
		observability.String("name", g.config.Metadata.Name),
	)

	return nil
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Config returns the configuration.
func (g *Gateway) Config() *config.GatewayConfig {
	return g.config
}

// Engine returns the gin engine.
func (g *Gateway) Engine() *gin.Engine {
	return g.engine
}

// Addr returns the bound listener address, or "" before Start.
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr()
}
