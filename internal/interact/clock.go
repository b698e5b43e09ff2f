package interact

import "time"

// Timer is a cancellable scheduled task.
type Timer interface {
	// Stop cancels the timer; it reports false when the task already ran
	// or was stopped before.
	Stop() bool
}

// Clock schedules the controller's deferred callbacks (click
// disambiguation, transition release, resize debounce) so tests can drive
// them deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

// NewClock returns the wall clock.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }
