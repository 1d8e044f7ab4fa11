package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nonceguard"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Nonce metrics
	NoncesIssued       *prometheus.CounterVec
	NonceVerifications *prometheus.CounterVec
	NonceReplays       prometheus.Counter

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the nonceguard metrics, the build
// info collector, and the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		NoncesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonces_issued_total",
			Help:      "Total number of nonces issued.",
		}, []string{"action"}),

		NonceVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonce_verifications_total",
			Help:      "Total number of nonce verifications by result (fresh, aging, invalid).",
		}, []string{"result"}),

		NonceReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonce_replays_total",
			Help:      "Total number of single-use nonces rejected as already consumed.",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(
		r.NoncesIssued,
		r.NonceVerifications,
		r.NonceReplays,
		r.RequestsTotal,
		r.RequestDuration,
		NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Registerer returns the underlying registerer for components that add
// their own collectors (the Badger replay store).
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		Registry: r.reg,
	})
}

// IncIssued counts an issued nonce.
func (r *Registry) IncIssued(action string) {
	r.NoncesIssued.WithLabelValues(action).Inc()
}

// IncVerification counts a verification by its result name.
func (r *Registry) IncVerification(result string) {
	r.NonceVerifications.WithLabelValues(result).Inc()
}

// IncReplay counts a rejected replay.
func (r *Registry) IncReplay() {
	r.NonceReplays.Inc()
}

// ObserveRequest records one HTTP request. route is the matched pattern,
// never the raw path, to keep label cardinality bounded.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
