// Package metrics holds the Prometheus metrics for the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	PaymentDecisions   *prometheus.CounterVec
	FacilitatorLatency *prometheus.HistogramVec
	QueryDuration      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PaymentDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_payment_decisions_total",
			Help: "Payment gate outcomes by terminal ledger status",
		}, []string{"status"}),
		FacilitatorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustgate_facilitator_latency_seconds",
			Help:    "Latency of outbound facilitator calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustgate_query_duration_seconds",
			Help:    "End-to-end duration of trust query handling",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// ObservePaymentDecision records one gate outcome.
func (m *Metrics) ObservePaymentDecision(status string) {
	m.PaymentDecisions.WithLabelValues(status).Inc()
}

// ObserveFacilitatorLatency records one verify/settle round trip.
func (m *Metrics) ObserveFacilitatorLatency(operation string, d time.Duration) {
	m.FacilitatorLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveQueryDuration records one handled query.
func (m *Metrics) ObserveQueryDuration(endpoint string, d time.Duration) {
	m.QueryDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
