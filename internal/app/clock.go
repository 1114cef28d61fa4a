package app

import "time"

// Scheduler abstracts wall-clock reads and deadline timers so question
// progression can be driven deterministically in tests.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is an armed deadline. Stop reports whether the timer was disarmed
// before firing.
type Timer interface {
	Stop() bool
}

type realScheduler struct{}

// NewScheduler returns the wall-clock scheduler used outside of tests.
func NewScheduler() Scheduler { return realScheduler{} }

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
