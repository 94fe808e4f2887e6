package observability

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	rentalMetricsOnce sync.Once
	rentalRegistry    *RentalMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "trustrent",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. A zero code means the
// request succeeded; otherwise code is the JSON-RPC error code returned.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// RentalMetrics captures rental operation outcomes and escrow flows.
type RentalMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	flows      *prometheus.CounterVec
	paused     prometheus.Gauge
}

// Rental returns the lazily-initialised rental metrics registry.
func Rental() *RentalMetrics {
	rentalMetricsOnce.Do(func() {
		rentalRegistry = &RentalMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "rental",
				Name:      "operations_total",
				Help:      "Count of rental operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "trustrent",
				Subsystem: "rental",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for committed rental operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			flows: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "trustrent",
				Subsystem: "rental",
				Name:      "escrow_flow_units_total",
				Help:      "Ledger units moved through escrow segmented by direction.",
			}, []string{"direction"}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "trustrent",
				Subsystem: "rental",
				Name:      "paused",
				Help:      "Indicates whether the rental module is paused (1) or active (0).",
			}),
		}
		prometheus.MustRegister(
			rentalRegistry.operations,
			rentalRegistry.latency,
			rentalRegistry.flows,
			rentalRegistry.paused,
		)
	})
	return rentalRegistry
}

// Observe records an operation outcome. Failed operations do not contribute
// to the latency histogram.
func (m *RentalMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	if err == nil {
		m.latency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordFlow adds amount to the escrow flow counter for direction
// ("deposit", "release", "refund", "dispute_host", "dispute_guest").
func (m *RentalMetrics) RecordFlow(direction string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.flows.WithLabelValues(direction).Add(bigToFloat(amount))
}

// SetPaused toggles the pause gauge.
func (m *RentalMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	return f
}
