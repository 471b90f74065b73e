// Package prom exports tiercache metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/tiercache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	evicts   *prometheus.CounterVec
	promotes *prometheus.CounterVec
	errs     *prometheus.CounterVec
	sizeEnt  prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, labels)
	}
	a := &Adapter{
		hits:     counter("hits_total", "Cache hits by tier", "tier"),
		misses:   counter("misses_total", "Cache misses by tier", "tier"),
		evicts:   counter("evictions_total", "L1 evictions by reason", "reason"),
		promotes: counter("promotions_total", "Entries copied upward, by source tier", "from"),
		errs:     counter("errors_total", "Lower-tier failures that were swallowed", "tier", "op"),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of entries resident in L1",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.promotes, a.errs, a.sizeEnt)
	return a
}

// Hit increments the hit counter of tier t.
func (a *Adapter) Hit(t cache.Tier) { a.hits.WithLabelValues(t.String()).Inc() }

// Miss increments the miss counter of tier t.
func (a *Adapter) Miss(t cache.Tier) { a.misses.WithLabelValues(t.String()).Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Promote counts an entry copied up from tier from.
func (a *Adapter) Promote(from cache.Tier) { a.promotes.WithLabelValues(from.String()).Inc() }

// Error counts a swallowed failure of op on tier t.
func (a *Adapter) Error(t cache.Tier, op string) {
	a.errs.WithLabelValues(t.String(), op).Inc()
}

// Size updates the resident entries gauge.
func (a *Adapter) Size(entries int) { a.sizeEnt.Set(float64(entries)) }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
