package queue

import "time"

// Timer is a handle to a scheduled removal.
type Timer interface {
	// Stop cancels the timer. It reports false if the timer already fired or was stopped.
	Stop() bool
}

// Scheduler schedules fire-and-forget callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules callbacks on the runtime timer wheel.
type SystemScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
