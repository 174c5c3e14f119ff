package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/IvanBrykalov/memocache/memo"
	"go.uber.org/zap"
)

// Options configures a Registry and every memo it installs.
// Zero values are safe.
type Options struct {
	// DefaultTimeout is used when Replace/ResetCache get a non-positive
	// timeout. Zero reads memo.DefaultTimeout() at replacement time;
	// memo.NoExpiration disables expiry.
	DefaultTimeout time.Duration

	// Shards and Coalesce are passed to each memo.
	Shards   int
	Coalesce bool

	// Metrics returns the metrics sink for the memo installed under name.
	// nil => memo.NoopMetrics.
	Metrics func(name string) memo.Metrics

	Logger    *zap.Logger
	Scheduler memo.Scheduler
}

// slot is the per-name record: the current definition plus the saved
// original used to detect "already memoized" and to restore.
type slot struct {
	def memo.Func

	// wrapper installed by this registry; nil if def is user-provided.
	memo *memo.Memo

	// original is the definition saved by Replace. Its presence is the
	// only signal that the name is memoized.
	original memo.Func

	// originalMemo is set when original is itself a wrapper installed
	// here, so Restore and ResetCache keep tracking it.
	originalMemo *memo.Memo
}

// Registry maps names to replaceable computations.
// All methods are safe for concurrent use by multiple goroutines.
type Registry struct {
	mu    sync.RWMutex
	slots map[string]*slot
	opt   Options
	log   *zap.Logger
}

// New constructs an empty Registry.
func New(opt Options) *Registry {
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return &Registry{
		slots: make(map[string]*slot),
		opt:   opt,
		log:   opt.Logger,
	}
}

// Define binds name to fn, replacing any current definition.
// A saved original is left untouched, so a name defined over a memoized
// one still counts as memoized until Restore or ResetCache.
func (r *Registry) Define(name string, fn memo.Func) {
	if fn == nil {
		panic("registry: nil Func for " + name)
	}
	r.mu.Lock()
	s, ok := r.slots[name]
	if !ok {
		s = &slot{}
		r.slots[name] = s
	}
	old := s.memo
	s.def, s.memo = fn, nil
	r.mu.Unlock()

	if old != nil {
		old.Clear()
	}
}

// Lookup returns the definition currently bound to name.
func (r *Registry) Lookup(name string) (memo.Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[name]
	if !ok || s.def == nil {
		return nil, false
	}
	return s.def, true
}

// Call invokes the definition currently bound to name.
func (r *Registry) Call(name string, args ...any) (any, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, nameErr("call", name, ErrUndefined)
	}
	return fn(args...)
}

// Memo returns the wrapper installed under name, if the current
// definition is one.
func (r *Registry) Memo(name string) (*memo.Memo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[name]
	if !ok || s.memo == nil {
		return nil, false
	}
	return s.memo, true
}

// Memoized reports whether name has a saved original.
func (r *Registry) Memoized(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[name]
	return ok && s.original != nil
}

// Names returns the defined names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.slots))
	for name, s := range r.slots {
		if s.def != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Replace installs a memoized version of name's current definition.
// With retainOriginal the previous definition is saved for Restore;
// otherwise it is discarded and Restore will fail.
// It fails with ErrAlreadyMemoized if an original is already saved.
func (r *Registry) Replace(name string, timeout time.Duration, retainOriginal bool) (*memo.Memo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[name]
	if !ok || s.def == nil {
		return nil, nameErr("replace", name, ErrUndefined)
	}
	if s.original != nil {
		return nil, nameErr("replace", name, ErrAlreadyMemoized)
	}

	m := memo.New(s.def, r.memoOptions(name, timeout))
	if retainOriginal {
		s.original, s.originalMemo = s.def, s.memo
	}
	s.def, s.memo = m.Call, m

	r.log.Debug("memoized",
		zap.String("name", name),
		zap.String("memo", m.ID()),
		zap.Duration("timeout", m.Timeout()),
		zap.Bool("retained", retainOriginal))
	return m, nil
}

// Restore reinstalls the original saved by Replace. It is single-use:
// a second Restore fails with ErrNotMemoized.
func (r *Registry) Restore(name string) error {
	r.mu.Lock()
	s, ok := r.slots[name]
	if !ok || s.original == nil {
		r.mu.Unlock()
		return nameErr("restore", name, ErrNotMemoized)
	}
	old := s.memo
	s.def, s.memo = s.original, s.originalMemo
	s.original, s.originalMemo = nil, nil
	r.mu.Unlock()

	if old != nil {
		old.Clear()
	}
	r.log.Debug("restored", zap.String("name", name))
	return nil
}

// ResetCache memoizes over name's current definition with a fresh cache,
// discarding any saved original. Wrappers installed here are peeled off
// first: the fresh memo wraps the innermost function and every peeled
// cache is cleared.
func (r *Registry) ResetCache(name string, timeout time.Duration) (*memo.Memo, error) {
	r.mu.Lock()
	s, ok := r.slots[name]
	if !ok || s.def == nil {
		r.mu.Unlock()
		return nil, nameErr("reset", name, ErrUndefined)
	}

	base := s.def
	var stale []*memo.Memo
	if s.memo != nil {
		base = s.memo.Underlying()
		stale = append(stale, s.memo)
		// s.memo was installed over s.originalMemo by Replace.
		if s.originalMemo != nil {
			base = s.originalMemo.Underlying()
			stale = append(stale, s.originalMemo)
		}
	}
	if s.original == nil {
		r.log.Warn("resetting cache of a function without a saved original; it cannot be restored",
			zap.String("name", name))
	}

	m := memo.New(base, r.memoOptions(name, timeout))
	s.def, s.memo = m.Call, m
	s.original, s.originalMemo = nil, nil
	r.mu.Unlock()

	for _, old := range stale {
		old.Clear()
	}
	return m, nil
}

// DefineMemoized defines name and immediately memoizes it without
// retaining the plain definition.
func (r *Registry) DefineMemoized(name string, fn memo.Func, timeout time.Duration) (*memo.Memo, error) {
	r.Define(name, fn)
	return r.Replace(name, timeout, false)
}

// ---- helpers ----

func (r *Registry) memoOptions(name string, timeout time.Duration) memo.Options {
	opt := memo.Options{
		Timeout:        timeout,
		DefaultTimeout: r.opt.DefaultTimeout,
		Shards:         r.opt.Shards,
		Coalesce:       r.opt.Coalesce,
		Logger:         r.log.With(zap.String("name", name)),
		Scheduler:      r.opt.Scheduler,
	}
	if r.opt.Metrics != nil {
		opt.Metrics = r.opt.Metrics(name)
	}
	return opt
}
