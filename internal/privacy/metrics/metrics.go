package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the privacy module. Tracks record
// creation by data kind, reversal hit/miss ratio, and purge volume.
type Metrics struct {
	RecordsCreated       *prometheus.CounterVec
	RevertHits           prometheus.Counter
	RevertMisses         prometheus.Counter
	RecordsPurged        prometheus.Counter
	PseudonymizeDuration prometheus.Histogram
}

// New creates a Metrics instance with all privacy module metrics registered.
// Call once per process; promauto registers in the default registry.
func New() *Metrics {
	return &Metrics{
		RecordsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_pseudonymization_records_created_total",
			Help: "Total pseudonymization records created, by data kind",
		}, []string{"kind"}),
		RevertHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "maestro_pseudonymization_revert_hits_total",
			Help: "Tokens resolved to a backing record during reversal",
		}),
		RevertMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "maestro_pseudonymization_revert_misses_total",
			Help: "Tokens with no backing record during reversal",
		}),
		RecordsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "maestro_pseudonymization_records_purged_total",
			Help: "Expired pseudonymization records removed by the sweep",
		}),
		PseudonymizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "maestro_pseudonymize_duration_seconds",
			Help:    "Duration of Pseudonymize calls (detection plus persistence)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRecordsCreated records a persisted record of the given kind.
func (m *Metrics) IncrementRecordsCreated(kind string) {
	m.RecordsCreated.WithLabelValues(kind).Inc()
}

// ObservePseudonymize records the duration of a Pseudonymize call.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObservePseudonymize(start time.Time) {
	m.PseudonymizeDuration.Observe(time.Since(start).Seconds())
}
