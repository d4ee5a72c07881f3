// Package errs defines the error-kind taxonomy shared across the
// orchestration core so callers can branch with errors.Is instead of
// string matching.
package errs

import "errors"

var (
	// ErrValidation marks malformed tool parameters or model-output JSON.
	ErrValidation = errors.New("validation error")

	// ErrTransientIO marks a failed request to the remote memory service.
	// It is returned to the caller as is; no layer retries on it.
	ErrTransientIO = errors.New("transient io error")

	// ErrPermissionDenied marks a user-rejected tool call.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrBoundedLoopExhausted marks max-iteration or max-retry exhaustion.
	ErrBoundedLoopExhausted = errors.New("bounded loop exhausted")

	// ErrStoreCorrupt marks a memory snapshot unreadable in every known
	// format. Fatal at startup.
	ErrStoreCorrupt = errors.New("memory store corrupt")

	// ErrQueueInconsistent marks a queue row in an illegal state for the
	// requested transition, such as Complete on a row that is not Running.
	ErrQueueInconsistent = errors.New("queue inconsistent")
)
