package memo

import (
	"reflect"
	"time"

	"github.com/IvanBrykalov/memocache/internal/keyhash"
	"github.com/IvanBrykalov/memocache/internal/singleflight"
	"github.com/IvanBrykalov/memocache/internal/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Memo wraps a Func and caches its results by argument list.
// All methods are safe for concurrent use by multiple goroutines.
type Memo struct {
	id      string
	fn      Func
	timeout time.Duration // positive, or NoExpiration
	shards  []*shard

	opt Options

	// sf coalesces concurrent misses when Options.Coalesce is set.
	sf *singleflight.Group[any]
}

// Stats is a point-in-time snapshot of a memo's counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// New wraps fn. The timeout is resolved once here and never re-read.
// Defaults:
//   - nil Metrics   -> NoopMetrics
//   - nil Logger    -> zap.NewNop()
//   - nil Scheduler -> time.AfterFunc
//   - Shards <= 0   -> auto, rounded up to the next power of two
func New(fn Func, opt Options) *Memo {
	if fn == nil {
		panic("memo: nil Func")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Scheduler == nil {
		opt.Scheduler = wallScheduler{}
	}

	m := &Memo{
		id:      uuid.NewString(),
		fn:      fn,
		timeout: resolveTimeout(opt.Timeout, opt.DefaultTimeout),
		opt:     opt,
	}
	if opt.Coalesce {
		m.sf = singleflight.New[any](keyhash.Equal)
	}

	sh := util.ShardCount(opt.Shards)
	m.shards = make([]*shard, sh)
	for i := range m.shards {
		m.shards[i] = newShard(m)
	}

	if m.timeout <= 0 {
		opt.Logger.Warn("memo entries never expire; cache may grow without bound",
			zap.String("memo", m.id))
	}
	return m
}

// Call returns the cached result for args, computing it on a miss.
//
// Whatever the outcome, the key's expiry timer is refreshed before Call
// returns, including when fn fails or panics. Errors and absent results
// (see IsAbsent) are not cached, but the key's clock is still reset.
func (m *Memo) Call(args ...any) (res any, err error) {
	h := keyhash.Sum(args)
	s := m.getShard(h)

	var store bool
	defer func() { s.settle(h, args, res, store) }()

	if v, ok := s.get(h, args); ok {
		return v, nil
	}

	res, err = m.compute(h, args)
	if err != nil {
		m.opt.Metrics.Failure()
		return nil, err
	}
	store = !IsAbsent(res)
	return res, nil
}

// Forget drops the cached result for args and cancels its timer.
// It reports whether a value was removed.
func (m *Memo) Forget(args ...any) bool {
	h := keyhash.Sum(args)
	return m.getShard(h).forget(h, args)
}

// Clear drops every cached result and cancels every timer.
// Memos that never expire must be cleared manually.
func (m *Memo) Clear() {
	n := 0
	for _, s := range m.shards {
		for _, e := range s.clear() {
			m.dropped(e, ExpireClear)
			n++
		}
	}
	if n > 0 {
		m.opt.Metrics.Resize(-n)
	}
}

// Len returns the number of cached results across all shards.
func (m *Memo) Len() int {
	total := 0
	for _, s := range m.shards {
		total += s.count()
	}
	return total
}

// Stats returns hit/miss counters and the current entry count.
func (m *Memo) Stats() Stats {
	var st Stats
	for _, s := range m.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Entries += s.count()
	}
	return st
}

// Timeout returns the resolved timeout, or NoExpiration.
func (m *Memo) Timeout() time.Duration { return m.timeout }

// Underlying returns the wrapped Func.
func (m *Memo) Underlying() Func { return m.fn }

// ID identifies this memo in logs.
func (m *Memo) ID() string { return m.id }

// AsFunc returns m.Call as a Func, so a memo can stand wherever its
// underlying computation did.
func (m *Memo) AsFunc() Func { return m.Call }

// IsAbsent reports whether v is the absent sentinel: nil, or a nil
// pointer, map, slice, chan, func or interface. Such results are
// indistinguishable from "not computed" and are never cached.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// ---- helpers ----

func (m *Memo) compute(h uint64, args []any) (any, error) {
	if m.sf == nil {
		return m.fn(args...)
	}
	v, err, _ := m.sf.Do(h, args, func() (any, error) { return m.fn(args...) })
	return v, err
}

// getShard picks a shard by hash. len(m.shards) is a power of two.
func (m *Memo) getShard(h uint64) *shard {
	return m.shards[util.ShardIndex(h, len(m.shards))]
}

// dropped reports a removed value. Called outside shard locks.
func (m *Memo) dropped(e *entry, reason ExpireReason) {
	m.opt.Metrics.Expire(reason)
	if reason != ExpireClear {
		m.opt.Metrics.Resize(-1)
	}
	if cb := m.opt.OnExpire; cb != nil {
		cb(e.args, e.val, reason)
	}
}
