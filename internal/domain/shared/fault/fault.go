// Package fault defines the error taxonomy shared by the billing core. Domain
// errors wrap one of the kinds below so transports can classify failures with
// errors.Is without knowing every concrete error.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means there is nothing to act on.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate means the target already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrInvalidTransition means the operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInvalidInput means the request itself is malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExternalService means an upstream dependency failed.
	ErrExternalService = errors.New("external service failure")
	// ErrInvariantViolation means stored state disagrees with itself.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrConcurrentUpdate means a versioned save lost a race with another writer.
	ErrConcurrentUpdate = fmt.Errorf("concurrent update: %w", ErrInvalidTransition)
)

var kinds = []error{
	ErrNotFound,
	ErrDuplicate,
	ErrInvalidTransition,
	ErrInvalidInput,
	ErrExternalService,
	ErrInvariantViolation,
}

// Kind returns the taxonomy bucket err belongs to, or nil when err is not classified.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Retryable reports whether a caller may reasonably retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrExternalService) || errors.Is(err, ErrConcurrentUpdate)
}

// External tags err as an upstream failure of the named service.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrExternalService, service, err)
}

// Invalid builds an input validation error.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
