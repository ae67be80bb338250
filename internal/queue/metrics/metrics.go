package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the inbound queue.
type Metrics struct {
	Enqueued    *prometheus.CounterVec
	Processed   prometheus.Counter
	Requeued    prometheus.Counter
	DeadLetters prometheus.Counter
}

// New creates a Metrics instance with all queue metrics registered.
// Call once per process; promauto registers in the default registry.
func New() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_queue_enqueued_total",
			Help: "Items placed on the inbound queue, by kind",
		}, []string{"kind"}),
		Processed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "maestro_queue_processed_total",
			Help: "Items processed successfully",
		}),
		Requeued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "maestro_queue_requeued_total",
			Help: "Failed items returned to the queue for retry",
		}),
		DeadLetters: promauto.NewCounter(prometheus.CounterOpts{
			Name: "maestro_queue_dead_letters_total",
			Help: "Items moved to the dead letter table after exhausting attempts",
		}),
	}
}
