// Package system provides clocks for the harvest run.
package system

import "time"

// Clock implements race.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Tests use it to pin the recency window.
type Fixed struct {
	At time.Time
}

// Now returns the fixed instant in UTC.
func (f Fixed) Now() time.Time {
	return f.At.UTC()
}
