package match

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth signals bad or missing provider credentials. Never retried;
	// the provider is unusable until reconfigured.
	ErrAuth = errors.New("provider authentication failed")

	// ErrNotFound signals a legitimate empty result. Not retried and not
	// treated as a provider failure.
	ErrNotFound = errors.New("metadata not found")

	// ErrNoProvidersConfigured signals that no usable provider exists.
	ErrNoProvidersConfigured = errors.New("no metadata providers configured")
)

// TransientError wraps a failure worth retrying: network errors, timeouts,
// rate limiting, or provider 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError for the given operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// Transientf is Transient with a formatted cause.
func Transientf(op, format string, args ...any) error {
	return &TransientError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
