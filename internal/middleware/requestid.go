package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// RequestIDHeader is the header name for request ID.
const RequestIDHeader = HeaderXRequestID

// maxRequestIDLength caps inbound IDs before they reach logs and the upstream.
const maxRequestIDLength = 128

// RequestID returns a middleware that adds a request ID to each request.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(func() string {
		return uuid.New().String()
	})
}

// RequestIDWithGenerator returns a middleware that uses a custom ID generator.
// A well-formed ID already present on the request is kept, anything else is
// replaced. The ID is echoed to the client and forwarded to the upstream.
func RequestIDWithGenerator(generator func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if !validRequestID(requestID) {
				requestID = generator()
				r.Header.Set(RequestIDHeader, requestID)
			}

			r = r.WithContext(observability.ContextWithRequestID(r.Context(), requestID))
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r)
		})
	}
}

// validRequestID accepts non-empty printable ASCII without spaces.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
