// Package system provides the real clock.
package system

import "time"

// Clock returns the current UTC time.
type Clock struct{}

func (Clock) Now() time.Time { return time.Now().UTC() }
