// Package metrics holds the Prometheus collectors of the settlement engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels of a recalculation.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	recalculations *prometheus.CounterVec
	payments       prometheus.Counter
	warnings       *prometheus.CounterVec
	transfers      prometheus.Histogram
}

// New registers the collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripsplit",
			Name:      "recalculations_total",
			Help:      "Expense recalculations by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripsplit",
			Name:      "payments_recorded_total",
			Help:      "Payments appended to expense ledgers.",
		}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripsplit",
			Name:      "integrity_warnings_total",
			Help:      "Integrity warnings raised during recalculation, by kind.",
		}, []string{"kind"}),
		transfers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tripsplit",
			Name:      "settlement_transfers",
			Help:      "Pending reimbursements produced per settlement.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
	}
	m.registry.MustRegister(
		m.recalculations,
		m.payments,
		m.warnings,
		m.transfers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Recalculation counts one recompute.
func (m *Metrics) Recalculation(trigger, outcome string) {
	if m == nil {
		return
	}
	m.recalculations.WithLabelValues(trigger, outcome).Inc()
}

// PaymentRecorded counts one appended payment.
func (m *Metrics) PaymentRecorded() {
	if m == nil {
		return
	}
	m.payments.Inc()
}

// Warning counts one integrity warning.
func (m *Metrics) Warning(kind string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(kind).Inc()
}

// Settlement observes the number of transfers a settlement produced.
func (m *Metrics) Settlement(transfers int) {
	if m == nil {
		return
	}
	m.transfers.Observe(float64(transfers))
}
