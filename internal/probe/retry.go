package probe

import (
	"net/http"
	"time"
)

// RetryPolicy bounds per-URL attempts. It is a pure decision function over
// (attempt index, last status) so the loop around it stays trivial.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches field experience: three attempts with a short
// growing backoff is enough to ride out a camera that drops the first
// connection while its encoder is busy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Delay returns the backoff before the next attempt. attempt is 1-based.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// ShouldRetry reports whether another attempt at the same URL is worthwhile.
// A 401 is a credential/scheme mismatch: replaying the identical request
// cannot change the outcome, so it aborts immediately. Everything else
// (transport errors, wrong content, 5xx) retries until the attempt cap.
func (p RetryPolicy) ShouldRetry(attempt, lastStatus int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return lastStatus != http.StatusUnauthorized
}
