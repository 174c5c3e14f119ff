package memo

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// fakeScheduler fires callbacks only when Advance moves its clock past
// their deadline, so expiry tests do not depend on wall time.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock and runs due callbacks outside the scheduler lock.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due, rest []*fakeTimer
	for _, t := range s.timers {
		switch {
		case t.stopped:
		case t.at <= s.now:
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	s.timers = rest
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of scheduled, not yet stopped callbacks.
func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fired reports whether t's callback won against cancel.
func (t *timer) fired() bool { return t.state.Load() == timerFired }

// counted wraps fn and counts underlying invocations.
func counted(fn Func) (Func, *atomic.Int64) {
	var calls atomic.Int64
	return func(args ...any) (any, error) {
		calls.Add(1)
		return fn(args...)
	}, &calls
}

func sum(args ...any) (any, error) {
	total := 0
	for _, a := range args {
		total += a.(int)
	}
	return total, nil
}

// recordingMetrics counts Metrics signals.
type recordingMetrics struct {
	hits, misses, failures atomic.Int64
	mu                     sync.Mutex
	expired                map[ExpireReason]int
	size                   atomic.Int64
}

func (r *recordingMetrics) Hit()     { r.hits.Add(1) }
func (r *recordingMetrics) Miss()    { r.misses.Add(1) }
func (r *recordingMetrics) Failure() { r.failures.Add(1) }
func (r *recordingMetrics) Expire(reason ExpireReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.expired == nil {
		r.expired = make(map[ExpireReason]int)
	}
	r.expired[reason]++
}
func (r *recordingMetrics) Resize(delta int) { r.size.Add(int64(delta)) }

func (r *recordingMetrics) expiredBy(reason ExpireReason) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expired[reason]
}
