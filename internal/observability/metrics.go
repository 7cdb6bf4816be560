package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics registry and standard meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	ClaimsTotal       *prometheus.CounterVec
	RootsRecorded     *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
}

// NewMetrics creates a custom Prometheus registry with the standard zkdrop
// metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zkdrop_operation_duration_seconds",
		Help:    "Duration of operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkdrop_operation_total",
		Help: "Total number of operations.",
	}, []string{"operation", "status"})

	claimsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkdrop_claims_total",
		Help: "Total claim attempts by outcome.",
	}, []string{"result"})

	rootsRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkdrop_roots_recorded_total",
		Help: "Total membership roots recorded per group.",
	}, []string{"group"})

	eventsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkdrop_events_dropped_total",
		Help: "Total events dropped for slow subscribers.",
	}, []string{"type"})

	reg.MustRegister(opDuration, opTotal, claimsTotal, rootsRecorded, eventsDropped)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		ClaimsTotal:       claimsTotal,
		RootsRecorded:     rootsRecorded,
		EventsDropped:     eventsDropped,
	}
}
