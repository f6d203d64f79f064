// Package pipeline holds the failure taxonomy shared across the middleware.
// Components wrap their errors with these sentinels and types so callers can
// classify a failure without knowing which collaborator produced it.
package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrThrottled marks a downstream "too many requests" response. The
	// dispatcher retries these with backoff; anything else is surfaced as-is.
	ErrThrottled = errors.New("downstream throttled")

	// ErrAuth marks a failure to obtain or refresh a credential.
	ErrAuth = errors.New("credential unavailable")

	// ErrConnection marks a transport-level failure on the event stream.
	// It never escapes the stream manager; it exists for logging and status.
	ErrConnection = errors.New("stream connection failed")
)

// ValidationError reports a malformed or incomplete event payload.
// Events that fail validation are dropped, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid event payload: " + e.Reason
}

// ExtractionError reports that every strategy in the fallback chain failed.
// It carries the last strategy's error.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("all extraction strategies failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DispatchError reports that a downstream write ultimately failed after the
// dispatcher exhausted its retries. It identifies the affected task so one
// entity's failure can be reported without aborting its siblings.
type DispatchError struct {
	Label string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %q failed: %v", e.Label, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
