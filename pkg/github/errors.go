package github

import (
	"fmt"
	"time"
)

// AuthError means the credential was rejected. Fatal for the refresh that
// issued it: never retried and never cached.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("github: authentication rejected (HTTP %d)", e.StatusCode)
}

// QuotaError means the call quota is spent. Callers should fall back to the
// last cached snapshot rather than propagate it.
type QuotaError struct {
	ResetAt time.Time
}

func (e *QuotaError) Error() string {
	if e.ResetAt.IsZero() {
		return "github: rate limit exhausted"
	}
	return fmt.Sprintf("github: rate limit exhausted until %s", e.ResetAt.Format(time.RFC3339))
}

// TransientError is a network failure, server error, or deadline expiry.
// Eligible for retry with backoff when no status code pins it to a request
// the server actually rejected.
type TransientError struct {
	StatusCode int // 0 for network or deadline failures
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github: upstream error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("github: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// retryable reports whether a failed attempt is worth repeating: network
// errors and 5xx responses only.
func retryable(err error) bool {
	te, ok := err.(*TransientError)
	if !ok {
		return false
	}
	return te.StatusCode == 0 || te.StatusCode >= 500
}
