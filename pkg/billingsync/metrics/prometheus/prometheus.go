package prommetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements billingsync.Metrics using Prometheus.
type Metrics struct {
	projectionsTotal      *prometheus.CounterVec
	notificationsTotal    *prometheus.CounterVec
	auditEntriesTotal     *prometheus.CounterVec
	resolutionMissesTotal *prometheus.CounterVec
	unhandledEventsTotal  *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		projectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_projections_total",
			Help:      "Total number of subscriber projection upserts.",
		}, []string{"tier", "active"}),

		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notification insert attempts.",
		}, []string{"type", "status"}),

		auditEntriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Total number of audit log entries appended.",
		}, []string{"level"}),

		resolutionMissesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_misses_total",
			Help:      "Total number of lookups that legitimately found nothing.",
		}, []string{"kind"}),

		unhandledEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unhandled_events_total",
			Help:      "Total number of acknowledged-but-unhandled event types.",
		}, []string{"event_type"}),
	}
}

func (m *Metrics) RecordProjection(tier string, active bool) {
	m.projectionsTotal.WithLabelValues(tier, strconv.FormatBool(active)).Inc()
}

func (m *Metrics) RecordNotification(kind, status string) {
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordAuditEntry(level string) {
	m.auditEntriesTotal.WithLabelValues(level).Inc()
}

func (m *Metrics) RecordResolutionMiss(kind string) {
	m.resolutionMissesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordUnhandledEvent(eventType string) {
	m.unhandledEventsTotal.WithLabelValues(eventType).Inc()
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
