package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnalyticsMetrics counts analytics worker deliveries by event type and outcome.
type AnalyticsMetrics struct {
	messages *prometheus.CounterVec
}

func NewAnalyticsMetrics(reg prometheus.Registerer) *AnalyticsMetrics {
	if reg == nil {
		return &AnalyticsMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_messages_total",
		Help:      "Pub/Sub deliveries seen by the analytics worker, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(messages)
	return &AnalyticsMetrics{messages: messages}
}

// IncMessage records a delivery as handled, duplicate, dropped or retry.
func (m *AnalyticsMetrics) IncMessage(eventType, outcome string) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
