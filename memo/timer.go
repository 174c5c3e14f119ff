package memo

import (
	"sync/atomic"
	"time"
)

// Timer states. Fired and cancelled are terminal.
const (
	timerScheduled int32 = iota
	timerFired
	timerCancelled
)

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// timer owns one scheduled expiry. Exactly one of fire and cancel wins.
type timer struct {
	state atomic.Int32
	stop  Stopper
}

// startTimer schedules onFire after d. onFire runs only if the timer was
// not cancelled first.
func startTimer(s Scheduler, d time.Duration, onFire func(*timer)) *timer {
	t := &timer{}
	t.stop = s.AfterFunc(d, func() {
		if t.state.CompareAndSwap(timerScheduled, timerFired) {
			onFire(t)
		}
	})
	return t
}

// cancel stops a scheduled timer. Cancelling a timer that already fired
// or was cancelled is a no-op and returns false.
func (t *timer) cancel() bool {
	if !t.state.CompareAndSwap(timerScheduled, timerCancelled) {
		return false
	}
	t.stop.Stop()
	return true
}
