package providers

import (
	"fmt"
	"time"

	"aeroclaim/pkg/errors"
)

// Kind classifies a provider call failure. The orchestrator and the retry
// middleware only ever look at the kind, never at raw transport errors.
type Kind string

const (
	KindNetwork   Kind = "network"    // connect failures, resets, DNS
	KindTimeout   Kind = "timeout"    // per-attempt deadline exceeded
	KindAuth      Kind = "auth"       // HTTP 401/403
	KindNotFound  Kind = "not_found"  // HTTP 404
	KindRateLimit Kind = "rate_limit" // HTTP 429
	KindServer    Kind = "server"     // HTTP 5xx
	KindClient    Kind = "client"     // other HTTP 4xx
)

// Error is a classified provider failure. Status is 0 when no HTTP response
// was received; RetryAfter is only set for rate limits that carried a
// Retry-After header.
type Error struct {
	Kind       Kind
	Op         Operation
	Status     int
	RetryAfter time.Duration
	Context    string
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (http %d)", msg, e.Status)
	}
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Context)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps classified kinds onto the shared sentinel errors so callers can use
// errors.Is against pkg/errors without importing this package.
func (e *Error) Is(target error) bool {
	switch target {
	case errors.ErrNotFound:
		return e.Kind == KindNotFound
	case errors.ErrTimeout:
		return e.Kind == KindTimeout
	case errors.ErrRateLimitExceeded:
		return e.Kind == KindRateLimit
	case errors.ErrProviderUnavailable:
		return e.Kind == KindNetwork || e.Kind == KindServer
	}
	return false
}

// NewError builds a classified provider error.
func NewError(kind Kind, op Operation, status int, context string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Context: context, Err: cause}
}

// AsError extracts a classified provider error from an error chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether the failure is transient: network errors,
// timeouts, 5xx responses and rate limits are retried; auth, not-found and
// other client errors are permanent.
func IsRetryable(err error) bool {
	pe, ok := AsError(err)
	if !ok {
		return false
	}
	switch pe.Kind {
	case KindNetwork, KindTimeout, KindServer, KindRateLimit:
		return true
	}
	return false
}

// IsNotFound reports whether the provider definitively answered that the
// requested entity does not exist.
func IsNotFound(err error) bool {
	pe, ok := AsError(err)
	return ok && pe.Kind == KindNotFound
}

// RetryAfterHint returns the server-supplied retry delay for rate limited
// calls, when one was present.
func RetryAfterHint(err error) (time.Duration, bool) {
	pe, ok := AsError(err)
	if !ok || pe.Kind != KindRateLimit || pe.RetryAfter <= 0 {
		return 0, false
	}
	return pe.RetryAfter, true
}

// ClassifyStatus maps an HTTP status code to an error kind. Only call it for
// non-2xx statuses.
func ClassifyStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}
