// Package system provides the wall clock used by the limiter and the contact pipeline.
package system

import "time"

// Clock satisfies contact.Clock and ratelimit.Clock with UTC wall time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
