package singleflight

import (
	"errors"
	"sync"
)

// Group coalesces concurrent calls for equal argument lists so that the
// supplied fn is executed at most once per flight. Other concurrent callers
// wait for the shared result.
//
// Flights are indexed by a hash and confirmed with the Group's equal func.
// A caller whose hash collides with an in-flight call for different
// arguments runs its own fn without coalescing.
//
// Concurrency notes:
//   - The first caller for a given key becomes the leader and runs fn.
//   - Followers wait on c.done. Publishing (val, err) happens-before
//     close(c.done), so reads after <-done observe the final values.
//   - A panic in fn is re-raised in the leader only; followers receive
//     ErrLeaderPanicked.
type Group[V any] struct {
	mu    sync.Mutex
	m     map[uint64]*call[V]
	equal func(a, b []any) bool
}

type call[V any] struct {
	done     chan struct{} // closed when val/err are published
	args     []any
	val      V
	err      error
	panicked bool
}

// ErrLeaderPanicked is returned to followers whose leader's fn panicked.
var ErrLeaderPanicked = errors.New("singleflight: leader call panicked")

// New returns a Group that matches flights with equal.
func New[V any](equal func(a, b []any) bool) *Group[V] {
	return &Group[V]{equal: equal}
}

// Do runs fn once for the given hash/args pair. Concurrent calls with equal
// arguments wait for the shared result. shared reports whether the result
// came from another caller's flight.
func (g *Group[V]) Do(hash uint64, args []any, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[uint64]*call[V])
	}
	if c, ok := g.m[hash]; ok {
		if g.equal(c.args, args) {
			g.mu.Unlock()
			<-c.done
			if c.panicked {
				var zero V
				return zero, ErrLeaderPanicked, true
			}
			return c.val, c.err, true
		}
		// Hash collision with a different flight: run uncoalesced.
		g.mu.Unlock()
		v, err = fn()
		return v, err, false
	}

	// We are the leader for this key.
	c := &call[V]{done: make(chan struct{}), args: args}
	g.m[hash] = c
	g.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.panicked = true
			g.finish(hash, c)
			panic(r)
		}
		g.finish(hash, c)
	}()

	c.val, c.err = fn()
	return c.val, c.err, false
}

// finish wakes followers and removes the in-flight marker.
func (g *Group[V]) finish(hash uint64, c *call[V]) {
	close(c.done)
	g.mu.Lock()
	if g.m[hash] == c {
		delete(g.m, hash)
	}
	g.mu.Unlock()
}
