package pvoutput

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoData is returned by Status when PVOutput has no status data recorded
// for the system. The service signals this with HTTP 400 on getstatus.jsp.
var ErrNoData = errors.New("pvoutput: no status data available for this system")

// ConnectionError reports a transport-level failure (DNS, refused connection,
// timeout) while talking to the PVOutput API.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("pvoutput: request failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError is returned when PVOutput rejects the API key or system
// id (HTTP 401 or 403).
type AuthenticationError struct {
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("pvoutput: authentication failed (status %d)", e.StatusCode)
}

// ResponseError is returned for any other non-success HTTP status.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("pvoutput: api error %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// DecodeError is returned when a response body does not match the endpoint's
// fixed field layout. It indicates an API contract change or a malformed
// response, never a missing reading.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pvoutput: decode %s response: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsAuthentication reports whether err is an authentication failure.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
