package gate

import (
	"encoding/json"
	"io"
	"net/http"
)

// RejectionPayload is the body written for a rejected request.
type RejectionPayload struct {
	ReturnValue ResponseCode `json:"returnValue"`
}

// WriteTo writes the payload as JSON to w.
func (p RejectionPayload) WriteTo(w io.Writer) (int64, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(body)
	return int64(n), err
}

// writeRejection answers a rejected request. The status is always 200 so
// that callers read the code from the body, like any other billing reply.
func writeRejection(w http.ResponseWriter, reason ResponseCode) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err := RejectionPayload{ReturnValue: reason}.WriteTo(w)
	return err
}
