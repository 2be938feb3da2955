package match

import (
	"time"
)

// Timer is a cancellable pending callback. Stop never blocks; a timer that
// already fired is a no-op to stop, and every callback re-checks its
// preconditions under the match lock anyway.
type Timer interface {
	Stop()
}

// Scheduler is the only way match code arms timers or reads the clock, so
// tests can substitute a virtual one and step time by hand.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Timer
	Now() int64 // unix milliseconds
}

type systemScheduler struct{}

// NewSystemScheduler returns the wall-clock scheduler used in production.
func NewSystemScheduler() Scheduler {
	return systemScheduler{}
}

func (systemScheduler) Schedule(delay time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(delay, fn)}
}

func (systemScheduler) Now() int64 {
	return time.Now().UnixMilli()
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() {
	s.t.Stop()
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
