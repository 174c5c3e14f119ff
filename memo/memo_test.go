package memo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const ttl = 100 * time.Millisecond

// Second call within the window is served from cache.
func TestMemo_CachesByArguments(t *testing.T) {
	t.Parallel()
	fn, calls := counted(sum)
	m := New(fn, Options{Timeout: ttl, Scheduler: &fakeScheduler{}})

	v1, err := m.Call(1, 2, 3)
	require.NoError(t, err)
	v2, err := m.Call(1, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 6, v1)
	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, m.Len())
}

// f(1, 2) and f(2, 1) are different keys.
func TestMemo_KeyOrderMatters(t *testing.T) {
	t.Parallel()
	fn, calls := counted(sum)
	m := New(fn, Options{Timeout: ttl, Scheduler: &fakeScheduler{}})

	_, _ = m.Call(1, 2)
	_, _ = m.Call(2, 1)
	_, _ = m.Call(1, 2)

	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 2, m.Len())
}

// Equal-valued but distinct argument objects hit the same entry.
func TestMemo_StructuralKeys(t *testing.T) {
	t.Parallel()
	fn, calls := counted(func(args ...any) (any, error) {
		return len(args[0].([]string)) + len(args[1].(map[string]int)), nil
	})
	m := New(fn, Options{Timeout: ttl, Scheduler: &fakeScheduler{}})

	for i := 0; i < 3; i++ {
		v, err := m.Call([]string{"a", "b"}, map[string]int{"x": 1})
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	}
	assert.EqualValues(t, 1, calls.Load())
}

// Waiting out the timeout purges the entry; the next call recomputes.
func TestMemo_Expiration(t *testing.T) {
	t.Parallel()
	clk := &fakeScheduler{}
	fn, calls := counted(sum)
	m := New(fn, Options{Timeout: ttl, Scheduler: clk})

	_, _ = m.Call(7)
	clk.Advance(ttl - time.Millisecond)
	assert.Equal(t, 1, m.Len(), "entry must survive until the timeout")

	clk.Advance(time.Millisecond)
	assert.Equal(t, 0, m.Len(), "entry must be purged after the timeout")

	_, _ = m.Call(7)
	assert.EqualValues(t, 2, calls.Load())
}

// Calling every T/2 keeps the entry alive indefinitely.
func TestMemo_AccessRefreshesTimer(t *testing.T) {
	t.Parallel()
	clk := &fakeScheduler{}
	fn, calls := counted(sum)
	m := New(fn, Options{Timeout: ttl, Scheduler: clk})

	for i := 0; i < 50; i++ {
		_, err := m.Call(1, 1)
		require.NoError(t, err)
		clk.Advance(ttl / 2)
	}
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, clk.Pending(), "exactly one live timer per key")
}

func TestMemo_NoExpiration(t *testing.T) {
	t.Parallel()
	clk := &fakeScheduler{}
	fn, calls := counted(sum)
	m := New(fn, Options{DefaultTimeout: NoExpiration, Scheduler: clk})

	require.Equal(t, NoExpiration, m.Timeout())
	for i := 0; i < 100; i++ {
		_, _ = m.Call(3)
		clk.Advance(24 * time.Hour)
	}
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 0, clk.Pending(), "no timers are scheduled")
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestMemo_NoExpirationLogsWarning(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.WarnLevel)
	_ = New(sum, Options{DefaultTimeout: NoExpiration, Logger: zap.New(core)})
	_ = New(sum, Options{Timeout: ttl, Logger: zap.New(core)})

	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "never expire")
}

// Errors propagate unchanged, are not cached, and still arm the timer.
func TestMemo_ErrorsPropagateAndRefreshTimer(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	clk := &fakeScheduler{}
	met := &recordingMetrics{}
	fn, calls := counted(func(...any) (any, error) { return nil, boom })
	m := New(fn, Options{Timeout: ttl, Scheduler: clk, Metrics: met})

	_, err := m.Call("k")
	assert.Same(t, boom, err)
	_, err = m.Call("k")
	assert.Same(t, boom, err)

	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, clk.Pending())
	assert.EqualValues(t, 2, met.failures.Load())

	// The timer of a failed key fires without reporting an expiry.
	clk.Advance(ttl)
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, 0, met.expiredBy(ExpireTimeout))
}

func TestMemo_PanicStillRefreshesTimer(t *testing.T) {
	t.Parallel()
	clk := &fakeScheduler{}
	m := New(func(...any) (any, error) { panic("underlying failed") }, Options{Timeout: ttl, Scheduler: clk})

	assert.PanicsWithValue(t, "underlying failed", func() { _, _ = m.Call(1) })
	assert.Equal(t, 1, clk.Pending())
	assert.Equal(t, 0, m.Len())
}

// Absent results are indistinguishable from "not computed".
func TestMemo_AbsentResultsAreRecomputed(t *testing.T) {
	t.Parallel()
	var nilMap map[string]int
	fn, calls := counted(func(...any) (any, error) { return nilMap, nil })
	m := New(fn, Options{Timeout: ttl, Scheduler: &fakeScheduler{}})

	for i := 0; i < 3; i++ {
		v, err := m.Call("x")
		require.NoError(t, err)
		assert.Nil(t, v)
	}
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, 0, m.Len())
}

func TestIsAbsent(t *testing.T) {
	var p *int
	var s []int
	assert.True(t, IsAbsent(nil))
	assert.True(t, IsAbsent(p))
	assert.True(t, IsAbsent(s))
	assert.False(t, IsAbsent(0))
	assert.False(t, IsAbsent(false))
	assert.False(t, IsAbsent(""))
	assert.False(t, IsAbsent([]int{}))
}

func TestMemo_ForgetAndClear(t *testing.T) {
	t.Parallel()
	clk := &fakeScheduler{}
	met := &recordingMetrics{}
	var reasons []ExpireReason
	fn, calls := counted(sum)
	m := New(fn, Options{
		Timeout:   ttl,
		Scheduler: clk,
		Metrics:   met,
		OnExpire:  func(_ []any, _ any, r ExpireReason) { reasons = append(reasons, r) },
	})

	_, _ = m.Call(1)
	_, _ = m.Call(2)
	_, _ = m.Call(3)

	assert.True(t, m.Forget(1))
	assert.False(t, m.Forget(1), "second Forget finds nothing")
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, clk.Pending())

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, clk.Pending())
	assert.EqualValues(t, 0, met.size.Load())
	assert.Equal(t, []ExpireReason{ExpireForget, ExpireClear, ExpireClear}, reasons)

	_, _ = m.Call(1)
	assert.EqualValues(t, 4, calls.Load())
}

func TestMemo_OnExpireReceivesKeyAndValue(t *testing.T) {
	t.Parallel()
	clk := &fakeScheduler{}
	type expired struct {
		args []any
		v    any
	}
	var got []expired
	m := New(sum, Options{
		Timeout:   ttl,
		Scheduler: clk,
		OnExpire: func(args []any, v any, r ExpireReason) {
			assert.Equal(t, ExpireTimeout, r)
			got = append(got, expired{args, v})
		},
	})

	_, _ = m.Call(4, 5)
	clk.Advance(ttl)

	require.Len(t, got, 1)
	assert.Equal(t, []any{4, 5}, got[0].args)
	assert.Equal(t, 9, got[0].v)
}

// A timer that won its fire race after the key was refreshed must not
// evict the refreshed entry.
func TestMemo_StaleFireKeepsRefreshedEntry(t *testing.T) {
	t.Parallel()
	clk := &fakeScheduler{}
	m := New(sum, Options{Timeout: ttl, Scheduler: clk, Shards: 1})

	_, _ = m.Call(1)
	s := m.shards[0]
	var (
		h     uint64
		e     *entry
		stale *timer
	)
	s.mu.Lock()
	for k, bucket := range s.m {
		h, e, stale = k, bucket[0], bucket[0].timer
	}
	s.mu.Unlock()

	// Simulate the fire winning the CAS, then a refresh before it takes the lock.
	require.True(t, stale.state.CompareAndSwap(timerScheduled, timerFired))
	_, _ = m.Call(1)
	s.expire(h, e, stale)

	assert.Equal(t, 1, m.Len())
	clk.Advance(ttl)
	assert.Equal(t, 0, m.Len())
}

func TestMemo_MetricsAndStats(t *testing.T) {
	t.Parallel()
	met := &recordingMetrics{}
	m := New(sum, Options{Timeout: ttl, Scheduler: &fakeScheduler{}, Metrics: met})

	_, _ = m.Call(1)
	_, _ = m.Call(1)
	_, _ = m.Call(2)

	assert.EqualValues(t, 1, met.hits.Load())
	assert.EqualValues(t, 2, met.misses.Load())
	assert.EqualValues(t, 2, met.size.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 2, Entries: 2}, m.Stats())
}

func TestMemo_RealTimerExpires(t *testing.T) {
	t.Parallel()
	fn, calls := counted(sum)
	m := New(fn, Options{Timeout: 20 * time.Millisecond})

	_, _ = m.Call(1)
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	_, _ = m.Call(1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestMemo_NilFuncPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, Options{}) })
}

func TestMemo_AsFuncAndUnderlying(t *testing.T) {
	t.Parallel()
	m := New(sum, Options{Timeout: ttl, Scheduler: &fakeScheduler{}})
	f := m.AsFunc()

	v, err := f(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	assert.Equal(t, 1, m.Len())

	u, err := m.Underlying()(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, u)
	assert.NotEmpty(t, m.ID())
}
