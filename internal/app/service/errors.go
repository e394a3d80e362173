package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidURL signals a target URL that failed scheme, host or length checks.
	ErrInvalidURL = errors.New("invalid target url")

	// ErrInvalidCode signals a custom code that failed charset, length or
	// reserved-word checks.
	ErrInvalidCode = errors.New("invalid custom code")

	// ErrCodeConflict signals a code that is already issued, including codes
	// belonging to expired or deactivated records. Codes are never recycled.
	ErrCodeConflict = errors.New("short code already in use")

	// ErrCodeSpaceExhausted signals that random generation ran out of attempts.
	// This is a configuration problem (the code length must grow), not a
	// transient fault.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")

	// ErrNotFound signals a code that was never issued.
	ErrNotFound = errors.New("short url not found")

	// ErrExpired signals a code whose expiry has passed.
	ErrExpired = errors.New("short url expired")

	// ErrInactive signals a code that was deactivated.
	ErrInactive = errors.New("short url inactive")

	// ErrDependencyUnavailable signals that a backing store was unreachable
	// and no fallback path could serve the request.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// RateLimitedError reports a rejected request together with the time the
// caller should wait, derived from the remaining window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
