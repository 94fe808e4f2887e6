package index

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	projected  *prometheus.CounterVec
	cursor     prometheus.Gauge
	pollErrors prometheus.Counter
	exports    *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsReg  *metrics
)

func indexMetrics() *metrics {
	metricsOnce.Do(func() {
		metricsReg = &metrics{
			projected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "indexer",
				Name:      "events_projected_total",
				Help:      "Journal events folded into the read model, by event type.",
			}, []string{"type"}),
			cursor: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "trustrent",
				Subsystem: "indexer",
				Name:      "cursor_sequence",
				Help:      "Last journal sequence applied to the read model.",
			}),
			pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "indexer",
				Name:      "poll_errors_total",
				Help:      "Failed attempts to fetch or project journal pages.",
			}),
			exports: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "indexer",
				Name:      "exports_total",
				Help:      "Ledger exports written, by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			metricsReg.projected,
			metricsReg.cursor,
			metricsReg.pollErrors,
			metricsReg.exports,
		)
	})
	return metricsReg
}
