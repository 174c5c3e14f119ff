package memo

import (
	"time"

	"go.uber.org/zap"
)

// Func is a computation memoized by a Memo. It is invoked positionally
// with the arguments passed to Memo.Call.
type Func func(args ...any) (any, error)

// ExpireReason explains why an entry left the cache.
type ExpireReason int

const (
	// ExpireTimeout means the entry's timer fired.
	ExpireTimeout ExpireReason = iota
	// ExpireForget means removed by Memo.Forget.
	ExpireForget
	// ExpireClear means removed by Memo.Clear.
	ExpireClear
)

// String returns a stable label for the reason.
func (r ExpireReason) String() string {
	switch r {
	case ExpireTimeout:
		return "timeout"
	case ExpireForget:
		return "forget"
	case ExpireClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Metrics exposes memo-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Failure is reported when the underlying computation returns an error.
	Failure()
	Expire(reason ExpireReason)
	// Resize reports a change in the number of cached results. Deltas
	// from concurrent callers add up to the exact count.
	Resize(delta int)
}

// Stopper cancels a scheduled callback. Stop reports whether the call
// stopped the callback before it ran.
type Stopper interface{ Stop() bool }

// Scheduler runs f once after d elapses; useful for deterministic tests.
// The default uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// Options configures a Memo. Zero values are safe;
// defaults are applied in New():
//   - Timeout <= 0       => DefaultTimeout
//   - DefaultTimeout == 0 => process-wide DefaultTimeout()
//   - Shards <= 0        => auto (rounded up to power of two)
//   - nil Metrics        => NoopMetrics
//   - nil Logger         => zap.NewNop()
//   - nil Scheduler      => time.AfterFunc
type Options struct {
	// Timeout is the delay after the last call for a key before its entry
	// is dropped. Non-positive values fall back to DefaultTimeout.
	Timeout time.Duration

	// DefaultTimeout is used when Timeout is not positive. Zero reads the
	// process-wide default; NoExpiration disables expiry.
	DefaultTimeout time.Duration

	// Shards defines the number of shards. If 0, an automatic value is chosen
	// (≈ 2*GOMAXPROCS) and rounded to the next power of two.
	Shards int

	// Coalesce makes concurrent misses for equal arguments share a single
	// underlying call.
	Coalesce bool

	// Observability
	// OnExpire is called after an entry holding a value is removed.
	// It runs outside shard locks.
	OnExpire func(args []any, v any, reason ExpireReason)
	Metrics  Metrics
	Logger   *zap.Logger

	// Scheduler allows overriding the timer source (tests).
	Scheduler Scheduler
}
