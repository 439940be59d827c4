// Package clock provides the time service used by every scheduler component.
// Components never call time.Now directly, so tests can pin the clock and
// age tasks past maintenance windows without sleeping.
package clock

import "time"

// Clock is an interface for time operations.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time in UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// OrReal returns c, or RealClock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return RealClock{}
	}
	return c
}
