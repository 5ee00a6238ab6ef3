/**
 * @description
 * Typed error taxonomy shared by every marketplace adapter.
 * Each non-2xx provider response is classified into exactly one of these so the
 * HTTP client and the worker can decide between retry, backoff, and giving up
 * without inspecting provider-specific payloads.
 *
 * @dependencies
 * - standard "errors", "fmt", "time"
 */

package providers

import (
	"errors"
	"fmt"
	"time"
)

// AuthError means the credentials were rejected. The HTTP client refreshes the
// token exactly once per call chain before surfacing this.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error: %s", e.Provider, e.Message)
}

// RateLimitError carries the provider-specified wait before the next attempt.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
}

// ValidationError means the caller's input was malformed. Never retried.
type ValidationError struct {
	Provider string
	Details  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s rejected request: %s", e.Provider, e.Details)
}

// NotFoundError means the provider has no match for the requested key.
// Not an alarm condition; the pipeline treats it as "no data".
type NotFoundError struct {
	Provider string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s has no match for %q", e.Provider, e.Key)
}

// TransientServerError covers 5xx responses and timeouts. Retryable with backoff.
type TransientServerError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *TransientServerError) Error() string {
	return fmt.Sprintf("%s server error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the error may succeed on a later attempt
func IsRetryable(err error) bool {
	var rateLimit *RateLimitError
	var transient *TransientServerError
	var auth *AuthError
	return errors.As(err, &rateLimit) || errors.As(err, &transient) || errors.As(err, &auth)
}

// IsPermanent reports whether retrying can never help
func IsPermanent(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// IsNotFound reports whether the provider simply has no data for the key
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
