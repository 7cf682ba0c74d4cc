// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements procurement.Clock using time.Now. Timestamps keep their
// monotonic reading so elapsed run times are immune to wall clock steps.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}
