package middleware

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// statusRecorder captures the status code and body size written by the
// wrapped handler. A handler that never calls WriteHeader reports 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush implements http.Flusher interface for streaming support.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging returns a middleware that writes an access log entry per request.
// Server errors are logged at error level, everything else at info. Gate
// rejections are answered with 200 and are visible here only through the
// critical entry the gate writes itself.
func Logging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusRecorder(w)

			next.ServeHTTP(rw, r)

			fields := append(observability.RequestFields(r.Method, r.URL.Path, r.URL.RawQuery),
				observability.Int("status", rw.status),
				observability.Int("size", rw.size),
				observability.Duration("duration", time.Since(start)),
				observability.String("remote_addr", r.RemoteAddr),
				observability.String("user_agent", r.UserAgent()),
			)

			//nolint:contextcheck // request context carries the request id
			entry := logger.WithContext(r.Context())
			if rw.status >= http.StatusInternalServerError {
				entry.Error("http request", fields...)
				return
			}
			entry.Info("http request", fields...)
		})
	}
}
