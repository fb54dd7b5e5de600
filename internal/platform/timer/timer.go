// Package timer abstracts the wall clock. Task timestamps are stored as
// unix milliseconds; injecting the clock keeps staleness arithmetic
// testable.
package timer

import "time"

// Timer supplies the current time in unix milliseconds.
type Timer interface {
	NowMillis() int64
}

// SystemTimer is the production Timer backed by time.Now.
type SystemTimer struct{}

// NewSystemTimer returns a Timer backed by the system clock.
func NewSystemTimer() *SystemTimer {
	return &SystemTimer{}
}

// NowMillis returns the current unix time in milliseconds.
func (t *SystemTimer) NowMillis() int64 {
	return time.Now().UnixMilli()
}
