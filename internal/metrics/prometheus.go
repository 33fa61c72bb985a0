// Package metrics exposes Prometheus collectors for the content
// synchronization layer. Every recorder is a no-op until InitPrometheus is
// called, so library code can record unconditionally.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps the collectors for folio.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Fetch lifecycle
	fetchesTotal     *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	fetchesCoalesced *prometheus.CounterVec
	fetchesSkipped   *prometheus.CounterVec
	storeStatus      *prometheus.GaugeVec

	// Optimistic mutations
	mutationsTotal   *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	rollbacksTotal   *prometheus.CounterVec

	// Persisted adapter
	persistOps *prometheus.CounterVec

	// Remote content service
	remoteRequests      *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
}

// Default histogram buckets for remote latency (in milliseconds)
var defaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var (
	promMu      sync.RWMutex
	promMetrics *PrometheusMetrics
)

// InitPrometheus initializes the metrics subsystem. Calling it again
// replaces the registry, which tests rely on.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_fetches_total",
				Help:      "Network fetches started by entity stores, by outcome",
			},
			[]string{"store", "outcome"},
		),

		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_fetch_duration_ms",
				Help:      "Entity store fetch duration in milliseconds",
				Buckets:   buckets,
			},
			[]string{"store"},
		),

		fetchesCoalesced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_fetches_coalesced_total",
				Help:      "Fetch calls that joined an in-flight request",
			},
			[]string{"store"},
		),

		fetchesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_fetches_skipped_total",
				Help:      "Fetch calls suppressed because the store already fetched once",
			},
			[]string{"store"},
		),

		storeStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_status",
				Help:      "Entity store lifecycle status (0=idle, 1=loading, 2=ready, 3=failed)",
			},
			[]string{"store"},
		),

		mutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_mutations_total",
				Help:      "Optimistic mutations by store, kind and outcome",
			},
			[]string{"store", "kind", "outcome"},
		),

		mutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_mutation_duration_ms",
				Help:      "Optimistic mutation write duration in milliseconds",
				Buckets:   buckets,
			},
			[]string{"store", "kind"},
		),

		rollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_rollbacks_total",
				Help:      "Optimistic mutations reverted after a failed write",
			},
			[]string{"store"},
		),

		persistOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_operations_total",
				Help:      "Persisted adapter operations by op and outcome",
			},
			[]string{"op", "outcome"},
		),

		remoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_requests_total",
				Help:      "Remote content service requests by domain, method and status class",
			},
			[]string{"domain", "method", "status"},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Remote content circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"domain"},
		),
	}

	registry.MustRegister(
		pm.fetchesTotal,
		pm.fetchDuration,
		pm.fetchesCoalesced,
		pm.fetchesSkipped,
		pm.storeStatus,
		pm.mutationsTotal,
		pm.mutationDuration,
		pm.rollbacksTotal,
		pm.persistOps,
		pm.remoteRequests,
		pm.circuitBreakerState,
	)

	promMu.Lock()
	promMetrics = pm
	promMu.Unlock()
}

func current() *PrometheusMetrics {
	promMu.RLock()
	defer promMu.RUnlock()
	return promMetrics
}

// RecordFetch records a completed store fetch.
func RecordFetch(store string, d time.Duration, success bool) {
	pm := current()
	if pm == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	pm.fetchesTotal.WithLabelValues(store, outcome).Inc()
	pm.fetchDuration.WithLabelValues(store).Observe(float64(d.Milliseconds()))
}

// RecordFetchCoalesced counts a fetch call that joined an in-flight request.
func RecordFetchCoalesced(store string) {
	if pm := current(); pm != nil {
		pm.fetchesCoalesced.WithLabelValues(store).Inc()
	}
}

// RecordFetchSkipped counts a fetch call suppressed by fetch-once gating.
func RecordFetchSkipped(store string) {
	if pm := current(); pm != nil {
		pm.fetchesSkipped.WithLabelValues(store).Inc()
	}
}

// SetStoreStatus publishes a store's lifecycle status.
func SetStoreStatus(store string, status int) {
	if pm := current(); pm != nil {
		pm.storeStatus.WithLabelValues(store).Set(float64(status))
	}
}

// RecordMutation records an optimistic mutation outcome.
func RecordMutation(store, kind string, d time.Duration, committed bool) {
	pm := current()
	if pm == nil {
		return
	}
	outcome := "committed"
	if !committed {
		outcome = "rolled_back"
		pm.rollbacksTotal.WithLabelValues(store).Inc()
	}
	pm.mutationsTotal.WithLabelValues(store, kind, outcome).Inc()
	pm.mutationDuration.WithLabelValues(store, kind).Observe(float64(d.Milliseconds()))
}

// RecordPersist records a persisted adapter operation. outcome is one of
// "ok", "miss", "unavailable", "schema_mismatch", "corrupt", "quota".
func RecordPersist(op, outcome string) {
	if pm := current(); pm != nil {
		pm.persistOps.WithLabelValues(op, outcome).Inc()
	}
}

// RecordRemoteRequest records one remote content service request.
// status is the HTTP status class ("2xx", "4xx", "5xx") or "error".
func RecordRemoteRequest(domain, method, status string) {
	if pm := current(); pm != nil {
		pm.remoteRequests.WithLabelValues(domain, method, status).Inc()
	}
}

// SetCircuitBreakerState sets the breaker state gauge for a domain.
func SetCircuitBreakerState(domain string, state int) {
	if pm := current(); pm != nil {
		pm.circuitBreakerState.WithLabelValues(domain).Set(float64(state))
	}
}

// PrometheusHandler returns an HTTP handler for Prometheus scraping.
func PrometheusHandler() http.Handler {
	pm := current()
	if pm == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the registry, or nil before InitPrometheus.
func PrometheusRegistry() *prometheus.Registry {
	if pm := current(); pm != nil {
		return pm.registry
	}
	return nil
}
