// internal/retry/backoff.go
package retry

import "time"

const (
	baseDelay = 250 * time.Millisecond
	maxDelay  = 5 * time.Second
)

// Backoff maps an attempt count (0-based) to the delay before that attempt.
// Exponential with a cap; stateless so callers keep their own counters.
func Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return baseDelay
	}
	d := baseDelay << uint(attempt)
	if d > maxDelay || d <= 0 {
		return maxDelay
	}
	return d
}
