package answers

import (
	"errors"
	"fmt"
)

// ErrTransport is wrapped by every failure to reach the answer service or
// to read its response body.
var ErrTransport = errors.New("answer service transport failure")

// StatusError is reported for any non-2xx response. The body of such a
// response is never decoded.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("answer service responded with status %s", e.Status)
}

func (e *StatusError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *StatusError) IsServerError() bool {
	return e.StatusCode >= 500
}
