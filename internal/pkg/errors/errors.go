package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means an identifier has no resolvable catalog entry or
	// stored record.
	ErrNotFound = errors.New("not found")
	// ErrBusy means lock contention or an exhausted wait budget.
	ErrBusy = errors.New("busy")
	// ErrRateLimited means the upstream throttled the call. Retryable.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient means a network-level or temporary upstream failure.
	// Retryable.
	ErrTransient = errors.New("transient failure")
	// ErrMalformedResponse means an upstream payload did not parse. Not
	// retried; the unit of work is treated as empty/failed.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrTerminal means the retry budget for a transient failure was
	// exhausted.
	ErrTerminal = errors.New("terminal failure")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Terminal wraps err as a terminal failure, preserving the cause chain.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTerminal, err)
}

// IsRetryable reports whether err is worth another attempt under a bounded
// retry policy. Terminal errors are never retryable, even when they wrap a
// transient cause.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTerminal) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
