package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records settlement and checkout outcomes per gateway.
type SettlementMetrics struct {
	settlements    *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	createFailures *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// NewSettlementMetrics registers the settlement metrics on the provided
// registerer. A nil registerer yields a no-op recorder for tests.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Settlement attempts by gateway and resulting outcome.",
	}, []string{"gateway", "outcome"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_alerts_total",
		Help: "Settlement alerts raised by gateway and reason.",
	}, []string{"gateway", "reason"})
	createFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_create_failures_total",
		Help: "Payment creation failures after retries, by gateway.",
	}, []string{"gateway"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of settlement processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
	reg.MustRegister(settlements, alerts, createFailures, duration)
	return &SettlementMetrics{
		settlements:    settlements,
		alerts:         alerts,
		createFailures: createFailures,
		duration:       duration,
	}
}

// IncSettlement counts one settlement attempt with its outcome.
func (m *SettlementMetrics) IncSettlement(gateway, outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}

// IncAlert counts one raised settlement alert.
func (m *SettlementMetrics) IncAlert(gateway, reason string) {
	if m == nil || m.alerts == nil {
		return
	}
	m.alerts.WithLabelValues(normalizeLabel(gateway), normalizeLabel(reason)).Inc()
}

// IncCreateFailure counts one payment creation failure after retries.
func (m *SettlementMetrics) IncCreateFailure(gateway string) {
	if m == nil || m.createFailures == nil {
		return
	}
	m.createFailures.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// ObserveSettlementDuration records how long one settlement took.
func (m *SettlementMetrics) ObserveSettlementDuration(gateway string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(gateway)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
