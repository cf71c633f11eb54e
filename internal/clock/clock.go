// internal/clock/clock.go
//
// Scheduling seam for the game engines.
// Engines never call time.AfterFunc directly: they schedule through a Scheduler so
// tests can drive virtual time with Manual.
//
// Stop is best effort. A callback may already be running when Stop returns false, so
// callers must still guard their callbacks (the engines compare a token/epoch).

package clock

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running if it has not started yet.
	// Reports whether the call stopped the timer.
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns a Scheduler backed by the runtime timers.
func Real() Scheduler { return realScheduler{} }

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Stop stops t if it is non-nil. Convenience for engines holding optional handles.
func Stop(t Timer) {
	if t != nil {
		t.Stop()
	}
}
