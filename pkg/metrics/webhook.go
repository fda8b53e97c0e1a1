package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records inbound event processing outcomes.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duplicate *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "Inbound webhook events by type.",
	}, []string{"event_type"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed_total",
		Help: "Successfully processed webhook events by type.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed_total",
		Help: "Failed webhook events by type and retryability.",
	}, []string{"event_type", "retryable"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "Duplicate webhook deliveries short-circuited by the guard.",
	}, []string{"event_type"})
	reg.MustRegister(received, processed, failed, duplicate)
	return &WebhookMetrics{
		received:  received,
		processed: processed,
		failed:    failed,
		duplicate: duplicate,
	}
}

// IncReceived counts an inbound event.
func (w *WebhookMetrics) IncReceived(eventType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncProcessed counts a fully processed event.
func (w *WebhookMetrics) IncProcessed(eventType string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed counts a failed event with its retry classification.
func (w *WebhookMetrics) IncFailed(eventType string, retryable bool) {
	if w == nil || w.failed == nil {
		return
	}
	label := "false"
	if retryable {
		label = "true"
	}
	w.failed.WithLabelValues(normalizeLabel(eventType), label).Inc()
}

// IncDuplicate counts a short-circuited duplicate delivery.
func (w *WebhookMetrics) IncDuplicate(eventType string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
