package gate

import (
	"net/http"

	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// Handle runs the gate for one request. On allow it calls next exactly
// once with the original writer semantics and request context, then
// observes the status next produced. On reject next is not called.
func (g *Gate) Handle(w http.ResponseWriter, r *http.Request, next http.Handler) {
	req := RequestFromHTTP(r, g.header)

	decision := g.Check(r.Context(), req)
	if !decision.Allowed() {
		if err := writeRejection(w, decision.Reason()); err != nil {
			g.logger.WithContext(r.Context()).Debug("failed to write rejection payload",
				observability.Error(err),
			)
		}
		return
	}

	rec := &statusRecorder{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
	next.ServeHTTP(rec, r)

	g.Observe(r.Context(), req, rec.status)
}

// Middleware returns a middleware that puts g in front of the next
// handler.
func Middleware(g *Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.Handle(w, r, next)
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code
// written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// WriteHeader captures the first final status code.
func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader && code >= http.StatusOK {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write marks the header as written with the implicit 200.
func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher interface for streaming support.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying writer for http.ResponseController.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
