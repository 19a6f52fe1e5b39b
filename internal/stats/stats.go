package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flightboard"

// Drop reasons
const (
	DropStale        = "stale"
	DropSlowObserver = "slow_observer"
)

// Metrics tracks flight mutations, broadcasts and observers
type Metrics struct {
	Mutations         *prometheus.CounterVec
	Broadcasts        *prometheus.CounterVec
	BroadcastDrops    *prometheus.CounterVec
	Observers         prometheus.Gauge
	RelayResubscribes *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the metrics with a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the metrics with reg and serves them from gatherer
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Flight mutations by operation and result",
		}, []string{"operation", "result"}),
		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Events published to observers",
		}, []string{"event"}),
		BroadcastDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_drops_total",
			Help:      "Events not delivered, by reason",
		}, []string{"reason"}),
		Observers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Currently subscribed observers",
		}),
		RelayResubscribes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_resubscribes_total",
			Help:      "Relays that were evicted for falling behind and subscribed again",
		}, []string{"relay"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
		gatherer: gatherer,
	}
}

// Nop returns metrics registered with a throwaway registry
func Nop() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// RecordMutation counts a store mutation. err is the store result.
func (m *Metrics) RecordMutation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Mutations.WithLabelValues(operation, result).Inc()
}

// ObserveRequest records the latency of a handled request
func (m *Metrics) ObserveRequest(route string, code int, started time.Time) {
	m.RequestDuration.WithLabelValues(route, http.StatusText(code)).Observe(time.Since(started).Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
