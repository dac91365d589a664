// Package metrics holds the prometheus instruments for ledger, identity and dunning work
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every instrument the services report into
// a nil *Metrics is valid and records nothing
type Metrics struct {
	RecordsIngested  *prometheus.CounterVec
	LinksCreated     prometheus.Counter
	PaymentsDetected prometheus.Counter
	ReviewsParked    prometheus.Counter
	RemindersCreated *prometheus.CounterVec
	GroupsFailed     prometheus.Counter
	CarrierSubmits   *prometheus.CounterVec
	EventsRelayed    *prometheus.CounterVec
	SweepDuration    prometheus.Histogram
}

// New registers the instruments on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arledger_records_ingested_total",
			Help: "Records processed by the sweep by outcome",
		}, []string{"outcome"}),
		LinksCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "arledger_snapshot_links_created_total",
			Help: "New invoice to snapshot links",
		}),
		PaymentsDetected: f.NewCounter(prometheus.CounterOpts{
			Name: "arledger_payments_detected_total",
			Help: "PAYMENT_RECEIVED events emitted by reconciliation",
		}),
		ReviewsParked: f.NewCounter(prometheus.CounterOpts{
			Name: "arledger_identity_reviews_parked_total",
			Help: "Records parked for manual identity review",
		}),
		RemindersCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arledger_reminders_created_total",
			Help: "Reminder records written by level",
		}, []string{"level"}),
		GroupsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "arledger_reminder_groups_failed_total",
			Help: "Reminder groups whose letter could not be produced or stored",
		}),
		CarrierSubmits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arledger_carrier_submissions_total",
			Help: "Letter submissions to the postal carrier by outcome",
		}, []string{"outcome"}),
		EventsRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arledger_history_events_relayed_total",
			Help: "History events published to outbound sinks",
		}, []string{"sink"}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arledger_sweep_period_duration_seconds",
			Help:    "Duration of one period sweep including reconciliation",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		}),
	}
}

var (
	defOnce sync.Once
	def     *Metrics
)

// Default returns the process wide instruments on the default registerer
func Default() *Metrics {
	defOnce.Do(func() { def = New(prometheus.DefaultRegisterer) })
	return def
}

// Handler serves the default gatherer in the prometheus text format
func Handler() http.Handler { return promhttp.Handler() }

// Ingested counts one sweep item by outcome
func (m *Metrics) Ingested(outcome string) {
	if m != nil {
		m.RecordsIngested.WithLabelValues(outcome).Inc()
	}
}

// Linked counts a new snapshot link
func (m *Metrics) Linked() {
	if m != nil {
		m.LinksCreated.Inc()
	}
}

// Payments counts detected payments
func (m *Metrics) Payments(n int) {
	if m != nil && n > 0 {
		m.PaymentsDetected.Add(float64(n))
	}
}

// Parked counts a record routed to review
func (m *Metrics) Parked() {
	if m != nil {
		m.ReviewsParked.Inc()
	}
}

// Reminders counts written reminder rows for a level name
func (m *Metrics) Reminders(level string, n int) {
	if m != nil && n > 0 {
		m.RemindersCreated.WithLabelValues(level).Add(float64(n))
	}
}

// GroupFailed counts a failed reminder group
func (m *Metrics) GroupFailed() {
	if m != nil {
		m.GroupsFailed.Inc()
	}
}

// Carrier counts a carrier submission by outcome
func (m *Metrics) Carrier(outcome string) {
	if m != nil {
		m.CarrierSubmits.WithLabelValues(outcome).Inc()
	}
}

// Relayed counts events delivered to a sink
func (m *Metrics) Relayed(sink string, n int) {
	if m != nil && n > 0 {
		m.EventsRelayed.WithLabelValues(sink).Add(float64(n))
	}
}

// ObserveSweep records how long a period sweep took
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m != nil {
		m.SweepDuration.Observe(d.Seconds())
	}
}
