package memo

import (
	"sync"

	"github.com/IvanBrykalov/memocache/internal/keyhash"
	"github.com/IvanBrykalov/memocache/internal/util"
	"go.uber.org/zap"
)

// shard is an independent partition of a memo with its own lock.
// Entries are bucketed by structural hash and confirmed with keyhash.Equal.
type shard struct {
	// ---- guarded by mu ----
	mu  sync.Mutex
	m   map[uint64][]*entry
	len int // entries holding a cached value

	owner *Memo

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.Counter
	misses util.Counter
}

func newShard(owner *Memo) *shard {
	return &shard{
		m:     make(map[uint64][]*entry),
		owner: owner,
	}
}

// get returns the cached value for args, if any.
func (s *shard) get(h uint64, args []any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.findLocked(h, args); e != nil && e.cached {
		s.hits.Add(1)
		s.owner.opt.Metrics.Hit()
		return e.val, true
	}
	s.misses.Add(1)
	s.owner.opt.Metrics.Miss()
	return nil, false
}

// settle optionally stores v for args and then refreshes the key's timer,
// both under one lock so a fire cannot slip between them.
func (s *shard) settle(h uint64, args []any, v any, store bool) {
	m := s.owner

	s.mu.Lock()
	e := s.findLocked(h, args)
	if e == nil {
		if !store && m.timeout <= 0 {
			s.mu.Unlock()
			return
		}
		e = &entry{args: append([]any(nil), args...)}
		s.m[h] = append(s.m[h], e)
	}
	added := store && !e.cached
	if added {
		s.len++
	}
	if store {
		e.val, e.cached = v, true
	}

	if e.timer != nil {
		e.timer.cancel()
		e.timer = nil
	}
	if m.timeout > 0 {
		e.timer = startTimer(m.opt.Scheduler, m.timeout, func(t *timer) { s.expire(h, e, t) })
	} else if !e.cached {
		s.unlinkLocked(h, e)
	}
	s.mu.Unlock()

	if added {
		m.opt.Metrics.Resize(1)
	}
}

// expire runs on timer fire. It removes e only if t is still its current
// timer; a refresh that won the race keeps the entry.
func (s *shard) expire(h uint64, e *entry, t *timer) {
	s.mu.Lock()
	if e.timer != t {
		s.mu.Unlock()
		return
	}
	e.timer = nil
	s.unlinkLocked(h, e)
	dropped := s.dropLocked(e)
	s.mu.Unlock()

	if dropped {
		s.owner.opt.Logger.Debug("memo entry expired", zap.String("memo", s.owner.id))
		s.owner.dropped(e, ExpireTimeout)
	}
}

// forget removes the entry for args and cancels its timer.
func (s *shard) forget(h uint64, args []any) bool {
	s.mu.Lock()
	e := s.findLocked(h, args)
	if e == nil {
		s.mu.Unlock()
		return false
	}
	if e.timer != nil {
		e.timer.cancel()
		e.timer = nil
	}
	s.unlinkLocked(h, e)
	dropped := s.dropLocked(e)
	s.mu.Unlock()

	if dropped {
		s.owner.dropped(e, ExpireForget)
	}
	return dropped
}

// clear removes every entry and cancels every timer.
// It returns the entries that held a value.
func (s *shard) clear() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entry
	for _, bucket := range s.m {
		for _, e := range bucket {
			if e.timer != nil {
				e.timer.cancel()
				e.timer = nil
			}
			if s.dropLocked(e) {
				out = append(out, e)
			}
		}
	}
	s.m = make(map[uint64][]*entry)
	return out
}

func (s *shard) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

func (s *shard) findLocked(h uint64, args []any) *entry {
	for _, e := range s.m[h] {
		if keyhash.Equal(e.args, args) {
			return e
		}
	}
	return nil
}

func (s *shard) unlinkLocked(h uint64, e *entry) {
	bucket := s.m[h]
	for i, x := range bucket {
		if x != e {
			continue
		}
		bucket[i] = bucket[len(bucket)-1]
		bucket[len(bucket)-1] = nil
		bucket = bucket[:len(bucket)-1]
		break
	}
	if len(bucket) == 0 {
		delete(s.m, h)
	} else {
		s.m[h] = bucket
	}
}

// dropLocked clears e's value and reports whether it held one.
func (s *shard) dropLocked(e *entry) bool {
	if !e.cached {
		return false
	}
	e.cached = false
	s.len--
	return true
}
