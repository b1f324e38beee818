package submit

import (
	"errors"
	"fmt"
)

// ErrRejected marks a 2xx response whose body did not confirm success.
var ErrRejected = errors.New("submission rejected by server")

// Error describes an unsuccessful HTTP exchange.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote api returned status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the server signalled a transient condition.
func (e *Error) Retryable() bool {
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

// serverReachable reports whether err proves the server answered, in which
// case it should not count against the circuit breaker.
func serverReachable(err error) bool {
	if err == nil || errors.Is(err, ErrRejected) {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return !apiErr.Retryable()
	}
	return false
}
