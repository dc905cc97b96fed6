package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records counters for external event ingestion.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	applied   *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	stale     *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided
// registerer. A nil registerer yields a no-op recorder (tests).
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "Webhook deliveries accepted past signature verification.",
	}, []string{"source"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_applied_total",
		Help: "Webhook events that caused an actual state transition.",
	}, []string{"source"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "Webhook events dropped as already-processed replays.",
	}, []string{"source"})
	stale := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_stale_total",
		Help: "Webhook events dropped for arriving after a newer event.",
	}, []string{"source"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed_total",
		Help: "Webhook events that errored during application.",
	}, []string{"source"})
	reg.MustRegister(received, applied, duplicate, stale, failed)
	return &WebhookMetrics{
		received:  received,
		applied:   applied,
		duplicate: duplicate,
		stale:     stale,
		failed:    failed,
	}
}

func (m *WebhookMetrics) IncReceived(source string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(source).Inc()
}

func (m *WebhookMetrics) IncApplied(source string) {
	if m == nil || m.applied == nil {
		return
	}
	m.applied.WithLabelValues(source).Inc()
}

func (m *WebhookMetrics) IncDuplicate(source string) {
	if m == nil || m.duplicate == nil {
		return
	}
	m.duplicate.WithLabelValues(source).Inc()
}

func (m *WebhookMetrics) IncStale(source string) {
	if m == nil || m.stale == nil {
		return
	}
	m.stale.WithLabelValues(source).Inc()
}

func (m *WebhookMetrics) IncFailed(source string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(source).Inc()
}
