package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for intent resolution. Tracks which agent
// kinds win routing, how often no agent clears the threshold, and how long
// scoring takes.
type Metrics struct {
	Resolutions     *prometheus.CounterVec
	Unresolved      prometheus.Counter
	Confidence      prometheus.Histogram
	ResolveDuration prometheus.Histogram
}

// New creates a Metrics instance with all intent metrics registered.
// Call once per process; promauto registers in the default registry.
func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_intent_resolutions_total",
			Help: "Messages routed to an agent, by agent kind",
		}, []string{"kind"}),
		Unresolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "maestro_intent_unresolved_total",
			Help: "Messages where no agent cleared the confidence threshold",
		}),
		Confidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "maestro_intent_confidence",
			Help:    "Confidence of the winning agent per resolution",
			Buckets: []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "maestro_intent_resolve_duration_seconds",
			Help:    "Duration of intent resolution (directory fetch plus scoring)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

// ObserveResolve records the duration of a resolution call.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
