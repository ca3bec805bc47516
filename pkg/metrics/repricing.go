package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RepricingMetrics records repricing outcomes.
type RepricingMetrics struct {
	adjustments *prometheus.CounterVec
	runDuration prometheus.Histogram
	batch       *prometheus.CounterVec
}

// NewRepricingMetrics registers the repricing metrics on reg. A nil registerer yields no-op metrics.
func NewRepricingMetrics(reg prometheus.Registerer) *RepricingMetrics {
	if reg == nil {
		return &RepricingMetrics{}
	}
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "repricing_adjustments_total",
		Help:      "Price adjustments produced by rule evaluation, by status.",
	}, []string{"status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "repricing_run_duration_seconds",
		Help:      "Duration of one product repricing run.",
		Buckets:   prometheus.DefBuckets,
	})
	batch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "repricing_batch_products_total",
		Help:      "Products handled by batch runs, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(adjustments, runDuration, batch)
	return &RepricingMetrics{
		adjustments: adjustments,
		runDuration: runDuration,
		batch:       batch,
	}
}

// IncAdjustment counts one adjustment with the given status.
func (m *RepricingMetrics) IncAdjustment(status string) {
	if m == nil || m.adjustments == nil {
		return
	}
	m.adjustments.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *RepricingMetrics) ObserveRun(duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
}

// AddBatch counts batch products by outcome (processed, failed, not_due).
func (m *RepricingMetrics) AddBatch(outcome string, count int) {
	if m == nil || m.batch == nil || count <= 0 {
		return
	}
	m.batch.WithLabelValues(normalizeLabel(outcome)).Add(float64(count))
}
