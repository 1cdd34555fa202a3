package transport

import (
	"fmt"
	"net/http"
)

// RequestFailedError is returned by every Client method when the backend call
// does not produce a usable payload: network failure, non-2xx status or an
// undecodable body.
type RequestFailedError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RequestFailedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: request failed (%d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: request failed: %s", e.Op, e.Message)
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// HTTPStatusCode reports the response status, zero when no response arrived.
func (e *RequestFailedError) HTTPStatusCode() int { return e.Status }

func statusError(op string, status int, body []byte) *RequestFailedError {
	msg := backendMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &RequestFailedError{Op: op, Status: status, Message: msg}
}

func wrapError(op string, err error) *RequestFailedError {
	return &RequestFailedError{Op: op, Message: err.Error(), Err: err}
}
