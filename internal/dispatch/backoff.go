package dispatch

import "time"

// Backoff is the wait before retrying after the given 1-indexed failed attempt.
func Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return time.Minute
	}
	return 2 * time.Minute
}

// Priority maps the delay of a recurrence re-enqueue to a queue priority. Lower runs first.
func Priority(delay time.Duration) int {
	switch {
	case delay < time.Minute:
		return 1
	case delay < 5*time.Minute:
		return 3
	case delay < time.Hour:
		return 5
	default:
		return 7
	}
}
