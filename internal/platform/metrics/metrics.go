package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsCreated     prometheus.Counter
	Transitions         *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	InventoryAdjusted   *prometheus.CounterVec
	InventoryClamped    prometheus.Counter
	DonorsDeferred      *prometheus.CounterVec
	NotificationsFailed prometheus.Counter
	HTTPLatency         *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_requests_created_total",
			Help: "Total number of blood requests created",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_request_transitions_total",
			Help: "Lifecycle transitions applied, labeled by target status",
		}, []string{"to"}),
		TransitionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_request_transitions_rejected_total",
			Help: "Transition attempts rejected, labeled by reason",
		}, []string{"reason"}),
		InventoryAdjusted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_inventory_adjustments_total",
			Help: "Inventory ledger adjustments, labeled by action",
		}, []string{"action"}),
		InventoryClamped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_inventory_clamped_total",
			Help: "Inventory removals clamped at zero instead of going negative",
		}),
		DonorsDeferred: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_donors_deferred_total",
			Help: "Donation attempts deferred by the eligibility evaluator",
		}, []string{"reason"}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_notifications_failed_total",
			Help: "Appointment notifications that failed to send (non-fatal)",
		}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bloodlink_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveHTTP records one served request. Nil-receiver safe so tests can pass
// a nil *Metrics.
func (m *Metrics) ObserveHTTP(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(route, status).Observe(d.Seconds())
}

// IncRequestsCreated records a created blood request.
func (m *Metrics) IncRequestsCreated() {
	if m == nil {
		return
	}
	m.RequestsCreated.Inc()
}

// IncTransition records an applied lifecycle transition.
func (m *Metrics) IncTransition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

// IncTransitionRejected records a rejected transition attempt.
func (m *Metrics) IncTransitionRejected(reason string) {
	if m == nil {
		return
	}
	m.TransitionsRejected.WithLabelValues(reason).Inc()
}

// IncInventoryAdjusted records a ledger adjustment.
func (m *Metrics) IncInventoryAdjusted(action string) {
	if m == nil {
		return
	}
	m.InventoryAdjusted.WithLabelValues(action).Inc()
}

// IncInventoryClamped records a remove clamped at zero.
func (m *Metrics) IncInventoryClamped() {
	if m == nil {
		return
	}
	m.InventoryClamped.Inc()
}

// IncDonorDeferred records an eligibility deferral.
func (m *Metrics) IncDonorDeferred(reason string) {
	if m == nil {
		return
	}
	m.DonorsDeferred.WithLabelValues(reason).Inc()
}

// IncNotificationFailed records a swallowed notification failure.
func (m *Metrics) IncNotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}
