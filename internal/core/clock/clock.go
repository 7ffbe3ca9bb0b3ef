// Package clock provides the monotonic timer that feeds the tick scheduler.
package clock

import "time"

// Clock measures the wall time elapsed between scheduler polls.
type Clock interface {
	// ElapsedAndRestart returns the time elapsed since the previous call
	// (or since construction) and restarts the measurement.
	ElapsedAndRestart() time.Duration
}

// Timer is the production Clock, backed by the runtime's monotonic reading.
type Timer struct {
	last time.Time
}

func New() *Timer {
	return &Timer{last: time.Now()}
}

func (t *Timer) ElapsedAndRestart() time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	return d
}
