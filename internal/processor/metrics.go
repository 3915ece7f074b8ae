package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for the batch processor.
type Metrics struct {
	Received         prometheus.Counter
	Dropped          *prometheus.CounterVec
	Flushes          *prometheus.CounterVec
	DispatchFailures prometheus.Counter
}

// NewMetrics initializes and registers the processor metrics against reg.
// Pass prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Received: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flag_events",
			Subsystem: "processor",
			Name:      "events_received_total",
			Help:      "Total number of events accepted into the queue.",
		}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flag_events",
			Subsystem: "processor",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped before reaching the accumulator, by reason.",
		}, []string{"reason"}), // reason: not_started, worker_dead, queue_full
		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flag_events",
			Subsystem: "processor",
			Name:      "flushes_total",
			Help:      "Total number of batches flushed, by trigger.",
		}, []string{"trigger"}), // trigger: size, deadline, explicit, split, shutdown
		DispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flag_events",
			Subsystem: "processor",
			Name:      "dispatch_failures_total",
			Help:      "Total number of flushes whose dispatch returned an error.",
		}),
	}
}
