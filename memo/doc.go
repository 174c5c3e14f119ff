// Package memo provides generic function-result memoization with
// per-entry expiration timers.
//
// Design
//
//   - Keys: the full ordered argument list of a call. Keys are compared
//     structurally (reflect.DeepEqual per argument), so two calls with
//     equal-valued but distinct arguments share one entry, and f(1, 2) and
//     f(2, 1) do not. Lookups hash the list with xxhash and confirm inside
//     the hash bucket.
//
//   - Expiry: every call, hit or miss, cancels the key's timer and
//     schedules a new one, so an entry lives for Timeout after its last
//     use. The refresh is deferred and also runs when the underlying
//     computation returns an error or panics.
//
//   - Timeout: resolved once in New. A positive Options.Timeout wins;
//     otherwise Options.DefaultTimeout; otherwise the process-wide
//     DefaultTimeout(). A resolved value of NoExpiration keeps entries
//     until Forget, Clear or the memo itself is dropped; a warning is
//     logged because such a memo can grow without bound.
//
//   - Absent results: nil results (see IsAbsent) are indistinguishable
//     from "not computed" and are recomputed on every call.
//
//   - Concurrency: the memo is split into shards, each protected by a
//     mutex that guards both the cached values and their timers. The
//     underlying computation runs outside any lock. A timer that fires
//     after its key was refreshed is ignored. Concurrent misses for the
//     same key compute independently unless Options.Coalesce is set.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Failure/Expire/Size
//     signals. By default NoopMetrics is used; plug the metrics/prom
//     adapter to export them.
//
// Basic usage
//
//	fib := memo.New(func(args ...any) (any, error) {
//	    return slowFib(args[0].(int)), nil
//	}, memo.Options{Timeout: time.Minute})
//	v, err := fib.Call(40)
//
// Typed wrappers
//
//	lookup, m := memo.Wrap1(func(id string) (*User, error) {
//	    return db.FindUser(id)
//	}, memo.Options{Timeout: 30 * time.Second, Coalesce: true})
//	u, err := lookup("42")
//	m.Forget("42")
//
// For named, replaceable computations see package registry.
package memo
