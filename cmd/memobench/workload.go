package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/memocache/memo"
	"go.uber.org/zap"
)

// workload describes one benchmark run.
type workload struct {
	Timeout  time.Duration
	Shards   int
	Coalesce bool
	Workers  int
	Duration time.Duration
	Work     time.Duration
	Keys     int
	ZipfS    float64
	ZipfV    float64
	Seed     int64

	Metrics memo.Metrics
	Logger  *zap.Logger
}

type report struct {
	Elapsed    time.Duration
	Ops        uint64
	Computes   uint64
	Stats      memo.Stats
	FinalLen   int
	WorkersRun int
}

func (w workload) validate() error {
	switch {
	case w.Keys < 1:
		return errors.New("--keys must be >= 1")
	case w.ZipfS <= 1:
		return errors.New("--zipf-s must be > 1")
	case w.ZipfV < 1:
		return errors.New("--zipf-v must be >= 1")
	case w.Duration <= 0:
		return errors.New("--duration must be positive")
	}
	return nil
}

// run calls a slow function through a memo until Duration elapses or ctx
// is cancelled.
func (w workload) run(ctx context.Context) (report, error) {
	if err := w.validate(); err != nil {
		return report{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	workers := w.Workers
	if workers <= 0 {
		workers = 1
	}

	var computes uint64
	m := memo.New(func(args ...any) (any, error) {
		atomic.AddUint64(&computes, 1)
		if w.Work > 0 {
			time.Sleep(w.Work)
		}
		return fmt.Sprintf("v:%d", args[0]), nil
	}, memo.Options{
		Timeout:  w.Timeout,
		Shards:   w.Shards,
		Coalesce: w.Coalesce,
		Metrics:  w.Metrics,
		Logger:   w.Logger,
	})
	defer m.Clear()

	ctx, cancel := context.WithTimeout(ctx, w.Duration)
	defer cancel()

	var ops uint64
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workers)
	for id := 0; id < workers; id++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(w.Seed + int64(id)*9973))
			zipf := rand.NewZipf(r, w.ZipfS, w.ZipfV, uint64(w.Keys-1))

			for ctx.Err() == nil {
				if _, err := m.Call(zipf.Uint64()); err != nil {
					return
				}
				atomic.AddUint64(&ops, 1)
			}
		}(id)
	}
	wg.Wait()

	return report{
		Elapsed:    time.Since(start),
		Ops:        atomic.LoadUint64(&ops),
		Computes:   atomic.LoadUint64(&computes),
		Stats:      m.Stats(),
		FinalLen:   m.Len(),
		WorkersRun: workers,
	}, nil
}

func (r report) hitRate() float64 {
	total := r.Stats.Hits + r.Stats.Misses
	if total == 0 {
		return 0
	}
	return float64(r.Stats.Hits) / float64(total) * 100
}

func (r report) print(out io.Writer, w workload) {
	fmt.Fprintf(out, "timeout=%v shards=%d coalesce=%v workers=%d keys=%d dur=%v seed=%d\n",
		w.Timeout, w.Shards, w.Coalesce, r.WorkersRun, w.Keys, r.Elapsed, w.Seed)
	fmt.Fprintf(out, "ops=%d (%.0f ops/s)  computes=%d\n",
		r.Ops, float64(r.Ops)/r.Elapsed.Seconds(), r.Computes)
	fmt.Fprintf(out, "hits=%d  misses=%d  hit-rate=%.2f%%\n", r.Stats.Hits, r.Stats.Misses, r.hitRate())
	fmt.Fprintf(out, "Len()=%d\n", r.FinalLen)
}
