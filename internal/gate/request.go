package gate

import "net/http"

// Request is the part of an inbound request the gate looks at.
type Request struct {
	Method   string
	Path     string
	RawQuery string

	// Signatures holds every value of the signature header in order.
	// It may be empty.
	Signatures []string
}

// RequestFromHTTP builds a Request view over r, reading the given
// signature header.
func RequestFromHTTP(r *http.Request, header string) Request {
	return Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Signatures: r.Header.Values(header),
	}
}
