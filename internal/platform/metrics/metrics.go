package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the kiosk backend.
type Metrics struct {
	AdmissionsTotal    *prometheus.CounterVec
	AllocationRetries  prometheus.Counter
	ReadingsCompleted  prometheus.Counter
	PartialsReceived   prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
	QueueTransitions   *prometheus.CounterVec
	AdmissionsRejected prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AdmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_admissions_total",
			Help: "Queue admissions by priority tier and lane",
		}, []string{"tier", "lane"}),
		AllocationRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_queue_allocation_retries_total",
			Help: "Number of queue number allocation retries after conflicts",
		}),
		ReadingsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_vitals_readings_completed_total",
			Help: "Vitals readings that reached completeness",
		}),
		PartialsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_vitals_partials_received_total",
			Help: "Partial sensor updates received",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kiosk_http_request_duration_seconds",
			Help:    "HTTP handler latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		QueueTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_queue_transitions_total",
			Help: "Queue entry state transitions by target status",
		}, []string{"status"}),
		AdmissionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_admissions_rejected_total",
			Help: "Admissions rejected because the patient was already in the queue",
		}),
	}
}

// RecordAdmission increments the admission counter for a tier/lane pair.
func (m *Metrics) RecordAdmission(tier, lane string) {
	if m == nil {
		return
	}
	m.AdmissionsTotal.WithLabelValues(tier, lane).Inc()
}

// RecordTransition increments the state transition counter.
func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.QueueTransitions.WithLabelValues(status).Inc()
}

// RecordAllocationRetry counts an allocation conflict that was retried.
func (m *Metrics) RecordAllocationRetry() {
	if m == nil {
		return
	}
	m.AllocationRetries.Inc()
}

// RecordAdmissionRejected counts an admission that hit the idempotent
// already-admitted path.
func (m *Metrics) RecordAdmissionRejected() {
	if m == nil {
		return
	}
	m.AdmissionsRejected.Inc()
}

// RecordPartial counts one received sensor partial.
func (m *Metrics) RecordPartial() {
	if m == nil {
		return
	}
	m.PartialsReceived.Inc()
}

// RecordReadingCompleted counts a reading that reached completeness.
func (m *Metrics) RecordReadingCompleted() {
	if m == nil {
		return
	}
	m.ReadingsCompleted.Inc()
}

// ObserveRequest records one handler invocation in the latency histogram.
func (m *Metrics) ObserveRequest(method, route string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}
