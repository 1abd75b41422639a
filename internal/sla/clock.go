package sla

import "time"

// Clock supplies the current time. Injected so SLA evaluation and lifecycle
// timestamps are deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
