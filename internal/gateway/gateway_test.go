package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/portalgate/internal/config"
)

func testConfig() *config.GatewayConfig {
	cfg := config.DefaultConfig()
	cfg.Spec.Listener.Bind = "127.0.0.1"
	cfg.Spec.Listener.Port = 0
	return cfg
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(nil, WithHandler(okHandler()))
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = New(testConfig())
	assert.ErrorIs(t, err, ErrNilHandler)

	gw, err := New(testConfig(), WithHandler(okHandler()), WithShutdownTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, gw.State())
	assert.Equal(t, time.Second, gw.shutdownTimeout)
	assert.NotNil(t, gw.Engine())
	assert.Empty(t, gw.Addr())
	assert.Zero(t, gw.Uptime())
}

func TestEngine_CatchAll(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBody   string
	}{
		{
			name: "explicit status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, "created")
			},
			wantStatus: http.StatusCreated,
			wantBody:   "created",
		},
		{
			name: "implicit status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "body")
			},
			wantStatus: http.StatusOK,
			wantBody:   "body",
		},
		{
			name:       "nothing written",
			handler:    func(http.ResponseWriter, *http.Request) {},
			wantStatus: http.StatusOK,
		},
		{
			name: "bodiless not found is left alone",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := newEngine(tt.handler)
			for _, path := range []string{"/", "/billing/invoices", "/foo?x=1"} {
				for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
					rec := httptest.NewRecorder()
					engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

					assert.Equal(t, tt.wantStatus, rec.Code, "%s %s", method, path)
					assert.Equal(t, tt.wantBody, rec.Body.String(), "%s %s", method, path)
				}
			}
		})
	}
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	gw, err := New(testConfig(), WithHandler(okHandler()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, gw.Start(ctx))
	assert.True(t, gw.IsRunning())
	assert.NotEmpty(t, gw.Addr())

	assert.ErrorIs(t, gw.Start(ctx), ErrGatewayNotStopped)

	resp, err := http.Get("http://" + gw.Addr() + "/anything")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, gw.Stop(stopCtx))
	assert.Equal(t, StateStopped, gw.State())

	assert.ErrorIs(t, gw.Stop(ctx), ErrGatewayNotRunning)
}

func TestGateway_Stop_WaitsForInFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusAccepted)
	})

	gw, err := New(testConfig(), WithHandler(handler))
	require.NoError(t, err)
	require.NoError(t, gw.Start(context.Background()))

	result := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + gw.Addr() + "/slow")
		if err != nil {
			result <- 0
			return
		}
		_ = resp.Body.Close()
		result <- resp.StatusCode
	}()

	<-started
	stopped := make(chan error, 1)
	go func() {
		stopped <- gw.Stop(context.Background())
	}()

	close(release)
	assert.Equal(t, http.StatusAccepted, <-result)
	assert.NoError(t, <-stopped)
}

func TestGateway_Start_AddressInUse(t *testing.T) {
	t.Parallel()

	first, err := New(testConfig(), WithHandler(okHandler()))
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	defer func() { _ = first.Stop(context.Background()) }()

	_, port, err := splitPort(first.Addr())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Spec.Listener.Port = port
	second, err := New(cfg, WithHandler(okHandler()))
	require.NoError(t, err)

	assert.Error(t, second.Start(context.Background()))
	assert.Equal(t, StateStopped, second.State())
}
