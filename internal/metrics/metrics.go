// Package metrics holds the Prometheus collectors exported by the collector.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "collector"

// Metrics groups every collector metric.
type Metrics struct {
	ticks          *prometheus.CounterVec
	tickDuration   *prometheus.HistogramVec
	ticksSkipped   *prometheus.CounterVec
	poolsTracked   prometheus.Gauge
	poolsOnline    prometheus.Gauge
	adapterErrors  *prometheus.CounterVec
	storageErrors  *prometheus.CounterVec
	blocksResolved *prometheus.CounterVec
	errors         prometheus.Counter
}

// New creates the collectors and registers them on reg when reg is non-nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed task ticks.",
		}, []string{"task"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a task tick.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"task"}),
		ticksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_skipped_total",
			Help:      "Ticks skipped because the previous run of the task was still in flight.",
		}, []string{"task"}),
		poolsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pools_tracked",
			Help:      "Pools in the current pool list.",
		}),
		poolsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pools_online",
			Help:      "Pools whose last status poll succeeded.",
		}),
		adapterErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_errors_total",
			Help:      "Failed upstream sub-fetches by pool type.",
		}, []string{"type"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed persistence calls by operation.",
		}, []string{"op"}),
		blocksResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_hash_lookups_total",
			Help:      "Block hash lookups against the chain node by outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Error signals emitted by the collector.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.ticks, m.tickDuration, m.ticksSkipped, m.poolsTracked,
			m.poolsOnline, m.adapterErrors, m.storageErrors, m.blocksResolved, m.errors,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) ObserveTick(task string, took time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(task).Inc()
	m.tickDuration.WithLabelValues(task).Observe(took.Seconds())
}

func (m *Metrics) TickSkipped(task string) {
	if m == nil {
		return
	}
	m.ticksSkipped.WithLabelValues(task).Inc()
}

func (m *Metrics) SetPoolsTracked(n int) {
	if m == nil {
		return
	}
	m.poolsTracked.Set(float64(n))
}

func (m *Metrics) SetPoolsOnline(n int) {
	if m == nil {
		return
	}
	m.poolsOnline.Set(float64(n))
}

func (m *Metrics) AdapterError(poolType string) {
	if m == nil {
		return
	}
	m.adapterErrors.WithLabelValues(poolType).Inc()
}

func (m *Metrics) PersistenceError(op string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op).Inc()
}

// HashLookup records a chain-node lookup; outcome is "ok", "failed" or "sentinel".
func (m *Metrics) HashLookup(outcome string) {
	if m == nil {
		return
	}
	m.blocksResolved.WithLabelValues(outcome).Inc()
}
