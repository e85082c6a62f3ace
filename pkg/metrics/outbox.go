package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish outcomes.
const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxTerminal  = "terminal"
)

type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
	latency  prometheus.Histogram
	batches  prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_lag_seconds",
			Help:      "Time between a row being written and Pub/Sub acknowledging it.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 30, 120, 600},
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batches_total",
			Help:      "Non-empty batches drained.",
		}),
	}
	reg.MustRegister(m.outcomes, m.latency, m.batches)
	return m
}

// Handled counts one row. lag is only observed for published rows.
func (m *OutboxMetrics) Handled(eventType, outcome string, lag time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
	if outcome == OutboxPublished && lag > 0 {
		m.latency.Observe(lag.Seconds())
	}
}

func (m *OutboxMetrics) Batch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
