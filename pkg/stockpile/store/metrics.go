package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the store's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	operations      *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	records         *prometheus.GaugeVec
}

// NewMetrics creates the store collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockpile",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store mutations by collection and operation.",
		}, []string{"collection", "operation"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockpile",
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Snapshot writes that failed, by collection.",
		}, []string{"collection"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stockpile",
			Subsystem: "store",
			Name:      "records",
			Help:      "Records currently cached, by collection.",
		}, []string{"collection"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.persistFailures, m.records)
	}
	return m
}

func (m *Metrics) operation(collection, op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(collection, op).Inc()
}

func (m *Metrics) persistFailed(collection string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(collection).Inc()
}

func (m *Metrics) setRecords(collection string, n int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(collection).Set(float64(n))
}
