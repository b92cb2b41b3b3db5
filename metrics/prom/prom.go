package prom

import (
	"github.com/IvanBrykalov/replcache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	evicts      *prometheus.CounterVec
	sizeEnt     prometheus.Gauge
	degraded    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}
	}
	a := &Adapter{
		hits:   prometheus.NewCounter(counter("hits_total", "Cache hits")),
		misses: prometheus.NewCounter(counter("misses_total", "Cache misses")),
		evicts: prometheus.NewCounterVec(
			counter("evictions_total", "Cache evictions by reason"),
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
		degraded: prometheus.NewCounterVec(
			counter("degraded_total", "Backend failures answered fail-open, by operation"),
			[]string{"op"},
		),
		transitions: prometheus.NewCounterVec(
			counter("state_transitions_total", "Connectivity state changes, by new state"),
			[]string{"state"},
		),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "state",
			Help:        "1 for the current connectivity state, 0 otherwise",
			ConstLabels: constLabels,
		}, []string{"state"}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.degraded, a.transitions, a.state)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates the resident entries gauge.
func (a *Adapter) Size(entries int) {
	a.sizeEnt.Set(float64(entries))
}

// Degraded counts a swallowed backend failure.
func (a *Adapter) Degraded(op cache.Op) {
	a.degraded.WithLabelValues(string(op)).Inc()
}

// Transition records a state change and flips the state gauge.
func (a *Adapter) Transition(state string) {
	a.transitions.WithLabelValues(state).Inc()
	a.state.Reset()
	a.state.WithLabelValues(state).Set(1)
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
