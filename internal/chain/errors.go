package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// permanentError marks failures that retrying cannot fix: the chain
// rejected the request itself (malformed transaction, bad signature,
// unknown account in a request body).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanentf wraps a hard rejection.
func Permanentf(format string, args ...interface{}) error {
	return &permanentError{err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err is a hard rejection that must not be
// retried.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// IsTransient reports whether err is worth retrying: timeouts,
// unreachable endpoints, rate limiting, 5xx. Everything that is not
// explicitly permanent counts as transient, because an ambiguous
// network failure may hide a broadcast that actually landed.
func IsTransient(err error) bool {
	return err != nil && !IsPermanent(err) && !errors.Is(err, context.Canceled)
}

// errUnsupported lets a backend decline an operation so the next backend
// in order is tried without consuming a retry attempt.
var errUnsupported = errors.New("chain: operation not supported by backend")

// classifyHTTP converts an HTTP status into the right error class.
func classifyHTTP(status int, body string) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("chain: backend returned %d: %s", status, body)
	}
	return Permanentf("chain: backend rejected request with %d: %s", status, body)
}
