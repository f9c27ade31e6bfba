package util

import "time"

// ExponentialDelay returns the delay to sleep before poll attempt number
// attempt (0-indexed): base, 2*base, 4*base, ... capped at max. The function
// is pure so polling policy can be tested without mocking time or I/O.
func ExponentialDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
