package middleware

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderXRequestID is the X-Request-ID header name.
	HeaderXRequestID = "X-Request-ID"
)

// ContentTypeJSON is the JSON content type.
const ContentTypeJSON = "application/json"

// ErrInternalServerError is the body written when a handler panics.
const ErrInternalServerError = `{"error":"internal server error"}`

// ErrServiceUnavailable is the body written when the upstream breaker is open.
const ErrServiceUnavailable = `{"error":"service unavailable","message":"upstream circuit breaker is open"}`
