package state

import "time"

// SystemClock reads wall clock time. Tests substitute a fixed clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
