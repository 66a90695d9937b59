package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the process collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// CacheHits counts cache hits by tier (memory, persistent)
	CacheHits *prometheus.CounterVec

	CacheMisses prometheus.Counter
	CacheSets   *prometheus.CounterVec

	// CacheEvictions counts removals by reason (budget, quota, expired)
	CacheEvictions *prometheus.CounterVec

	CachePersistFailures prometheus.Counter
	CacheEntries         prometheus.Gauge
	CacheBytes           prometheus.Gauge

	// PollCycles counts live poll cycles by outcome (ok, failed, skipped, offline)
	PollCycles   *prometheus.CounterVec
	PollDuration prometheus.Histogram
	Deliveries   *prometheus.CounterVec
	Subscribers  prometheus.Gauge

	ProviderRequests *prometheus.CounterVec
	// ProviderCircuit counts breaker transitions by target state
	ProviderCircuit *prometheus.CounterVec
}

func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = "scoreboard"
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}, []string{"tier"}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		CacheSets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sets_total",
			Help:      "Total number of cache writes",
		}, []string{"class"}),
		CacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of cache entries removed before being read",
		}, []string{"reason"}),
		CachePersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_persist_failures_total",
			Help:      "Total number of abandoned persistent writes",
		}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_memory_entries",
			Help:      "Number of entries in the memory tier",
		}),
		CacheBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_memory_bytes",
			Help:      "Estimated payload bytes held by the memory tier",
		}),
		PollCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_poll_cycles_total",
			Help:      "Total number of live update poll cycles",
		}, []string{"outcome"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "live_poll_duration_seconds",
			Help:      "Duration of live update poll cycles including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_deliveries_total",
			Help:      "Total number of live deltas by outcome",
		}, []string{"outcome"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscribed_fixtures",
			Help:      "Number of fixtures with at least one subscriber",
		}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider requests by operation and result",
		}, []string{"operation", "result"}),
		ProviderCircuit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_circuit_transitions_total",
			Help:      "Total number of provider circuit breaker transitions by target state",
		}, []string{"to"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) CacheHit(tier string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(tier).Inc()
}

func (r *Recorder) CacheMiss() {
	if r == nil {
		return
	}
	r.CacheMisses.Inc()
}

func (r *Recorder) CacheSet(class string) {
	if r == nil {
		return
	}
	r.CacheSets.WithLabelValues(class).Inc()
}

func (r *Recorder) CacheEvicted(reason string, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.CacheEvictions.WithLabelValues(reason).Add(float64(count))
}

func (r *Recorder) CachePersistFailed() {
	if r == nil {
		return
	}
	r.CachePersistFailures.Inc()
}

func (r *Recorder) CacheSize(entries int, bytes int64) {
	if r == nil {
		return
	}
	r.CacheEntries.Set(float64(entries))
	r.CacheBytes.Set(float64(bytes))
}

func (r *Recorder) PollCycle(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.PollCycles.WithLabelValues(outcome).Inc()
	if took > 0 {
		r.PollDuration.Observe(took.Seconds())
	}
}

func (r *Recorder) Delivery(outcome string) {
	if r == nil {
		return
	}
	r.Deliveries.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SubscribedFixtures(count int) {
	if r == nil {
		return
	}
	r.Subscribers.Set(float64(count))
}

func (r *Recorder) ProviderRequest(operation, result string) {
	if r == nil {
		return
	}
	r.ProviderRequests.WithLabelValues(operation, result).Inc()
}

func (r *Recorder) ProviderCircuitTransition(to string) {
	if r == nil {
		return
	}
	r.ProviderCircuit.WithLabelValues(to).Inc()
}
