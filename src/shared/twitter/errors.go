package twitter

import (
	"fmt"
	"time"
)

// NotFoundError indicates the handle has no account behind it. Terminal; no retry.
type NotFoundError struct {
	Handle string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user @%s not found", e.Handle)
}

// RateLimitError carries the reset time and remaining quota parsed from the
// x-rate-limit-* response headers of a 429.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "rate limit exceeded"
	}
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// TransientError wraps network failures and 5xx responses. Safe to retry later.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient API failure: %v", e.Err)
	}
	return fmt.Sprintf("transient API failure: HTTP %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// APIError represents any other unexpected HTTP response.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Status)
}
