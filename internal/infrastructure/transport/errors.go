package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks a request that exceeded the backend's round-trip limit.
	ErrTimeout = errors.New("request timed out")
	// ErrAuthExpired marks a 401 answer; the session has already been cleared.
	ErrAuthExpired = errors.New("session expired, sign in again")
)

// TransportError is a failure to obtain any application-level answer.
// Kind is ErrTimeout, ErrAuthExpired or nil for plain network failures.
type TransportError struct {
	Method string
	URL    string
	Kind   error
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s %s: %v: %v", e.Method, e.URL, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Kind)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
}

func (e *TransportError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// BackendError is a structured non-2xx answer other than 401.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// IsTransport reports whether err came from the transport layer rather than
// from an application-level answer.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
