// Package prom exports memo metrics to Prometheus.
package prom

import (
	"github.com/IvanBrykalov/memocache/memo"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements memo.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	failures prometheus.Counter
	expires  *prometheus.CounterVec
	size     prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil);
//     use them to tell apart memos sharing a namespace
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Calls served from the memo cache",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Calls that ran the underlying computation",
			ConstLabels: constLabels,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "failures_total",
			Help:        "Underlying computations that returned an error",
			ConstLabels: constLabels,
		}),
		expires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "expirations_total",
				Help:        "Cached results removed, by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of cached results",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.failures, a.expires, a.size)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Failure increments the failure counter.
func (a *Adapter) Failure() { a.failures.Inc() }

// Expire increments the expiration counter with a reason label.
func (a *Adapter) Expire(r memo.ExpireReason) {
	a.expires.WithLabelValues(r.String()).Inc()
}

// Resize adjusts the entry gauge by delta.
func (a *Adapter) Resize(delta int) { a.size.Add(float64(delta)) }

// Compile-time check: ensure Adapter implements memo.Metrics.
var _ memo.Metrics = (*Adapter)(nil)
