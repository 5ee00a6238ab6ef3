/**
 * @description
 * Shared exponential backoff policy.
 * Used by both the provider HTTP client and the job queue's retry scheduling so
 * the two paths compute delays identically.
 *
 * @dependencies
 * - standard "time"
 */

package backoff

import "time"

// Policy describes an exponential backoff schedule: base * 2^(attempt-1), capped.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default matches the queue's documented schedule: 1 min doubling, capped at 1h.
func Default() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Minute,
		MaxDelay:    time.Hour,
	}
}

// Delay returns the wait before retrying after the given 1-based attempt number.
// Attempt values below 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Exhausted reports whether no retries remain after the given attempt count.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}
