package shared

import "time"

// Clock supplies the current time. Persistence code reads time through a Clock
// so that stamping can be pinned in tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface
type ClockFunc func() time.Time

// Now returns the result of calling f
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
