// Package backoff computes reconnect delays for the realtime engine.
package backoff

import "time"

// Policy is an exponential backoff schedule. Delays double from Initial
// up to Max. The zero value is not useful; start from Default.
type Policy struct {
	Initial     time.Duration // Delay before the first retry
	Max         time.Duration // Ceiling on any single delay
	MaxAttempts int           // Retries before giving up, 0 = never give up
}

// Default returns the production schedule: delays doubling from 1s
// toward a 30s ceiling, giving up after 5 consecutive failures.
func Default() Policy {
	return Policy{
		Initial:     time.Second,
		Max:         30 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay returns the wait before the given retry attempt. Attempts are
// numbered from 1; values below 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Exhausted reports whether the given count of consecutive failures
// uses up the schedule. An exhausted engine stops retrying for good.
func (p Policy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}
