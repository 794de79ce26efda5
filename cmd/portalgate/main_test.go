package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/portalgate/internal/config"
	"github.com/vyrodovalexey/portalgate/internal/gate"
	"github.com/vyrodovalexey/portalgate/internal/health"
	"github.com/vyrodovalexey/portalgate/internal/observability"
	"github.com/vyrodovalexey/portalgate/internal/proxy"
)

const portalAgent = "PortalCGI/1.0"

func observedLogger() (observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return observability.NewLoggerFromZap(zap.New(core)), logs
}

func writeConfig(t *testing.T, gateSection string) string {
	t.Helper()

	content := `
apiVersion: portalgate.io/v1
kind: PortalGate
metadata:
  name: billing-gate
spec:
  listener:
    bind: 127.0.0.1
    port: 18080
  upstream:
    url: http://127.0.0.1:18081
` + gateSection

	path := filepath.Join(t.TempDir(), "portalgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("PORTALGATE_TEST_SET", "value")
	t.Setenv("PORTALGATE_TEST_EMPTY", "")

	assert.Equal(t, "value", getEnvOrDefault("PORTALGATE_TEST_SET", "default"))
	assert.Equal(t, "default", getEnvOrDefault("PORTALGATE_TEST_EMPTY", "default"))
	assert.Equal(t, "default", getEnvOrDefault("PORTALGATE_TEST_UNSET", "default"))
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("portalgate", flag.ContinueOnError)
	flags := parseFlags(fs, []string{"-config", "/etc/portalgate/gate.yaml", "-log-level", "debug", "-version"})

	assert.Equal(t, "/etc/portalgate/gate.yaml", flags.configPath)
	assert.Equal(t, "debug", flags.logLevel)
	assert.True(t, flags.showVersion)
	assert.True(t, flags.logLevelSet)
	assert.False(t, flags.logFormatSet)
}

func TestParseFlags_EnvDefaults(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG_PATH", "/tmp/from-env.yaml")
	t.Setenv("GATEWAY_LOG_FORMAT", "console")

	fs := flag.NewFlagSet("portalgate", flag.ContinueOnError)
	flags := parseFlags(fs, nil)

	assert.Equal(t, "/tmp/from-env.yaml", flags.configPath)
	assert.Equal(t, "console", flags.logFormat)
	assert.Equal(t, "info", flags.logLevel)
	assert.False(t, flags.showVersion)
	assert.True(t, flags.logFormatSet)
	assert.False(t, flags.logLevelSet)
}

func TestResolveLogConfig(t *testing.T) {
	t.Parallel()

	defaults := cliFlags{logLevel: "info", logFormat: "json"}

	tests := []struct {
		name  string
		flags cliFlags
		lc    *config.LoggingConfig
		want  observability.LogConfig
	}{
		{
			name:  "no logging section",
			flags: defaults,
			want:  observability.LogConfig{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name:  "file settings fill defaults",
			flags: defaults,
			lc:    &config.LoggingConfig{Level: "debug", Format: "console", Output: "stderr"},
			want:  observability.LogConfig{Level: "debug", Format: "console", Output: "stderr"},
		},
		{
			name:  "explicit flags win",
			flags: cliFlags{logLevel: "warn", logFormat: "json", logLevelSet: true, logFormatSet: true},
			lc:    &config.LoggingConfig{Level: "debug", Format: "console"},
			want:  observability.LogConfig{Level: "warn", Format: "json", Output: "stdout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, resolveLogConfig(tt.flags, tt.lc))
		})
	}
}

func TestApplyLogConfig(t *testing.T) {
	t.Parallel()

	flags := cliFlags{logLevel: "info", logFormat: "json"}

	t.Run("unchanged keeps logger", func(t *testing.T) {
		t.Parallel()

		current, _ := observedLogger()
		assert.Same(t, current, applyLogConfig(current, flags, &config.LoggingConfig{}))
	})

	t.Run("invalid level keeps logger and warns", func(t *testing.T) {
		t.Parallel()

		current, logs := observedLogger()
		got := applyLogConfig(current, flags, &config.LoggingConfig{Level: "loud"})

		assert.Same(t, current, got)
		assert.Equal(t, 1, logs.FilterMessage("ignoring logging configuration").Len())
	})
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	path := writeConfig(t, `
  gate:
    portalCGIAgentHeader: PortalCGI/1.0
    saltKey: s3cr3t
`)

	cfg, err := loadAndValidateConfig(path, logger)
	require.NoError(t, err)

	assert.Equal(t, "billing-gate", cfg.Metadata.Name)
	assert.Zero(t, logs.FilterMessage("configuration warning").Len())
	assert.Equal(t, 1, logs.FilterMessage("configuration loaded").Len())
}

func TestLoadAndValidateConfig_Warnings(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	path := writeConfig(t, "")

	cfg, err := loadAndValidateConfig(path, logger)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	warnings := logs.FilterMessage("configuration warning").All()
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, zapcore.WarnLevel, w.Level)
	}
}

func TestLoadAndValidateConfig_Errors(t *testing.T) {
	t.Parallel()

	logger, _ := observedLogger()

	_, err := loadAndValidateConfig(filepath.Join(t.TempDir(), "missing.yaml"), logger)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apiVersion: other/v1\nkind: PortalGate\n"), 0o600))

	_, err = loadAndValidateConfig(path, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

type chainFixture struct {
	handler  http.Handler
	metrics  *observability.Metrics
	logs     *observer.ObservedLogs
	upstream *httptest.Server
	hits     *atomic.Int32
}

func newChainFixture(t *testing.T, policy gate.Policy) chainFixture {
	t.Helper()

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "billing")
	}))
	t.Cleanup(upstream.Close)

	logger, logs := observedLogger()
	metrics := observability.NewMetrics(metricsNamespace)
	tracer, err := observability.NewTracer(context.Background(), observability.TracerConfig{ServiceName: "test"})
	require.NoError(t, err)

	p, err := proxy.NewReverseProxy(upstream.URL, proxy.WithProxyLogger(logger))
	require.NoError(t, err)

	g := gate.New(policy,
		gate.WithLogger(logger),
		gate.WithMetrics(gate.NewMetrics(metricsNamespace, metrics.Registry())),
	)

	return chainFixture{
		handler:  buildMiddlewareChain(p, g, logger, metrics, tracer),
		metrics:  metrics,
		logs:     logs,
		upstream: upstream,
		hits:     &hits,
	}
}

func (f chainFixture) scrape(t *testing.T) string {
	t.Helper()

	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func strPtr(s string) *string {
	return &s
}

func TestBuildMiddlewareChain_Reject(t *testing.T) {
	t.Parallel()

	f := newChainFixture(t, gate.NewPolicy(strPtr(portalAgent), strPtr("k")))

	req := httptest.NewRequest(http.MethodPost, "/billing/charge?id=9", strings.NewReader("{}"))
	req.Header.Set("User-Agent", "curl/8.0")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"returnValue":"BrowserAgentNotMatch"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Zero(t, f.hits.Load())

	critical := f.logs.FilterField(zap.String(observability.SeverityKey, observability.SeverityCritical)).All()
	require.Len(t, critical, 1)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), critical[0].ContextMap()["request_id"])

	access := f.logs.FilterMessage("http request").All()
	require.Len(t, access, 1)
	assert.EqualValues(t, http.StatusOK, access[0].ContextMap()["status"])

	body := f.scrape(t)
	assert.Contains(t, body, `portalgate_gate_decisions_total{decision="rejected"} 1`)
	assert.Contains(t, body, `portalgate_requests_total{method="POST",status="200"} 1`)
}

func TestBuildMiddlewareChain_Allow(t *testing.T) {
	t.Parallel()

	f := newChainFixture(t, gate.NewPolicy(strPtr(portalAgent), strPtr("k")))

	req := httptest.NewRequest(http.MethodGet, "/billing/invoices", nil)
	req.Header.Set("User-Agent", portalAgent)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "billing", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.EqualValues(t, 1, f.hits.Load())
	assert.Zero(t, f.logs.FilterLevelExact(zapcore.WarnLevel).Len())

	assert.Contains(t, f.scrape(t), `portalgate_gate_decisions_total{decision="allowed"} 1`)
}

func TestBuildMiddlewareChain_UnhandledRoute(t *testing.T) {
	t.Parallel()

	f := newChainFixture(t, gate.NewPolicy(strPtr(portalAgent), strPtr("k")))

	req := httptest.NewRequest(http.MethodGet, "/missing?probe=1", nil)
	req.Header.Set("User-Agent", portalAgent)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	warns := f.logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	assert.Equal(t, "/missing", warns[0].ContextMap()["path"])
	assert.Equal(t, "probe=1", warns[0].ContextMap()["query"])

	assert.Contains(t, f.scrape(t), `portalgate_gate_unhandled_requests_total{method="GET"} 1`)
}

func TestBuildMiddlewareChain_FailOpen(t *testing.T) {
	t.Parallel()

	f := newChainFixture(t, gate.NewPolicy(nil, nil))

	for range 3 {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.EqualValues(t, 3, f.hits.Load())
	assert.Equal(t, 6, f.logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Contains(t, f.scrape(t), `portalgate_gate_decisions_total{decision="fail_open"} 3`)
}

func TestCreateMetricsServer_Endpoints(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics(metricsNamespace)
	checker := health.NewChecker("test")
	checker.RegisterCheck("gate_policy", health.GatePolicyCheck(gate.NewPolicy(nil, nil)))

	server := createMetricsServer(&config.MetricsConfig{Enabled: true, Port: 9191, Path: "/metrics"}, metrics, checker)
	assert.Equal(t, ":9191", server.Addr)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/metrics", wantStatus: http.StatusOK},
		{path: "/health", wantStatus: http.StatusOK},
		{path: "/ready", wantStatus: http.StatusOK},
		{path: "/live", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.wantStatus, rec.Code, tt.path)
	}

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var ready health.ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, health.StatusDegraded, ready.Status)
}

func TestInitApplication(t *testing.T) {
	t.Parallel()

	logger, _ := observedLogger()
	cfg := config.DefaultConfig()
	cfg.Spec.Upstream.URL = "http://127.0.0.1:18081"
	cfg.Spec.Gate.PortalCGIAgentHeader = portalAgent

	app, err := initApplication(context.Background(), cfg, logger)
	require.NoError(t, err)

	assert.NotNil(t, app.gateway)
	assert.NotNil(t, app.tracer)
	assert.Same(t, cfg, app.config)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "other")
	rec := httptest.NewRecorder()
	app.gateway.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"returnValue":"BrowserAgentNotMatch"}`, rec.Body.String())

	ready := app.healthChecker.Readiness()
	assert.Equal(t, health.StatusDegraded, ready.Checks["gate_policy"].Status)
}

func TestStartMetricsServer(t *testing.T) {
	t.Parallel()

	logger, _ := observedLogger()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		cfg.Spec.Observability.Metrics.Enabled = false
		app := &application{config: cfg}

		require.NoError(t, startMetricsServer(app, logger))
		assert.Nil(t, app.metricsServer)
	})

	t.Run("port taken", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", ":0")
		require.NoError(t, err)
		t.Cleanup(func() { _ = ln.Close() })

		cfg := config.DefaultConfig()
		cfg.Spec.Observability.Metrics.Port = ln.Addr().(*net.TCPAddr).Port
		app := &application{
			config:        cfg,
			metrics:       observability.NewMetrics(metricsNamespace),
			healthChecker: health.NewChecker("test"),
		}

		err = startMetricsServer(app, logger)
		require.Error(t, err)
		assert.Nil(t, app.metricsServer)
	})
}

func TestShutdown_DrainDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		drainDelay time.Duration
		wantLog    bool
	}{
		{name: "no delay", drainDelay: 0},
		{name: "keeps serving while draining", drainDelay: 300 * time.Millisecond, wantLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, logs := observedLogger()
			cfg := config.DefaultConfig()
			cfg.Spec.Listener.Bind = "127.0.0.1"
			cfg.Spec.Listener.Port = 0
			cfg.Spec.Listener.DrainDelay = config.Duration(tt.drainDelay)
			cfg.Spec.Upstream.URL = "http://127.0.0.1:18081"
			cfg.Spec.Observability.Metrics.Enabled = false

			app, err := initApplication(context.Background(), cfg, logger)
			require.NoError(t, err)
			require.NoError(t, app.gateway.Start(context.Background()))

			started := time.Now()
			done := make(chan struct{})
			go func() {
				shutdown(app, logger)
				close(done)
			}()

			if tt.drainDelay > 0 {
				require.Eventually(t, func() bool {
					return app.healthChecker.Readiness().Status == health.StatusUnhealthy
				}, time.Second, 10*time.Millisecond)
				assert.True(t, app.gateway.IsRunning())
			}

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("shutdown did not return")
			}

			assert.GreaterOrEqual(t, time.Since(started), tt.drainDelay)
			assert.False(t, app.gateway.IsRunning())
			assert.Equal(t, health.StatusUnhealthy, app.healthChecker.Readiness().Status)
			assert.Equal(t, tt.wantLog, logs.FilterMessage("draining before stop").Len() == 1)
		})
	}
}

func TestInitApplication_BadUpstream(t *testing.T) {
	t.Parallel()

	logger, _ := observedLogger()
	cfg := config.DefaultConfig()
	cfg.Spec.Upstream.URL = "billing"

	_, err := initApplication(context.Background(), cfg, logger)
	assert.ErrorIs(t, err, proxy.ErrInvalidTargetURL)
}

func TestWrapUpstream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		breaker     *config.CircuitBreakerConfig
		wantStatus  []int
		wantBreaker bool
	}{
		{
			name:       "no breaker configured",
			wantStatus: []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway},
		},
		{
			name:       "breaker disabled",
			breaker:    &config.CircuitBreakerConfig{Enabled: false, Threshold: 1},
			wantStatus: []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway},
		},
		{
			name: "breaker opens",
			breaker: &config.CircuitBreakerConfig{
				Enabled:   true,
				Threshold: 2,
				Timeout:   config.Duration(time.Minute),
			},
			wantStatus:  []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusServiceUnavailable},
			wantBreaker: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, _ := observedLogger()
			metrics := observability.NewMetrics(metricsNamespace)
			upstream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})

			h := wrapUpstream(config.UpstreamConfig{CircuitBreaker: tt.breaker}, upstream, logger, metrics)

			for i, want := range tt.wantStatus {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing", nil))
				assert.Equal(t, want, rec.Code, "request %d", i)
			}

			rec := httptest.NewRecorder()
			metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			assert.Equal(t, tt.wantBreaker,
				strings.Contains(rec.Body.String(), "portalgate_upstream_circuit_breaker_rejected_total 1"))
		})
	}
}
