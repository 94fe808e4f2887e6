package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
	head    prometheus.Gauge
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking journaled events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			head: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "trustrent",
				Subsystem: "events",
				Name:      "journal_head",
				Help:      "Sequence number of the latest journaled event.",
			}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.head)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// SetJournalHead records the latest journal sequence number.
func (m *eventMetrics) SetJournalHead(seq uint64) {
	if m == nil {
		return
	}
	m.head.Set(float64(seq))
}
