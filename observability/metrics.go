package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	minterMetricsOnce sync.Once
	minterRegistry    *MinterMetrics

	gatewayMetricsOnce sync.Once
	gatewayRegistry    *GatewayMetrics
)

// MinterMetrics wraps collectors tracking purchase submissions.
type MinterMetrics struct {
	submissions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	approvals   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	stale       *prometheus.CounterVec
}

// Minter returns the lazily-initialised registry for the purchase flow.
func Minter() *MinterMetrics {
	minterMetricsOnce.Do(func() {
		minterRegistry = &MinterMetrics{
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftminter",
				Subsystem: "purchase",
				Name:      "submissions_total",
				Help:      "Purchase transactions segmented by action, route and outcome.",
			}, []string{"action", "path", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftminter",
				Subsystem: "purchase",
				Name:      "rejections_total",
				Help:      "Purchases stopped before submission segmented by reason code.",
			}, []string{"code"}),
			approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftminter",
				Subsystem: "approval",
				Name:      "transactions_total",
				Help:      "Allowance approvals segmented by outcome.",
			}, []string{"outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftminter",
				Subsystem: "purchase",
				Name:      "confirmation_seconds",
				Help:      "Time from submission to confirmation of purchase transactions.",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			}, []string{"action"}),
			stale: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftminter",
				Subsystem: "purchase",
				Name:      "stale_results_total",
				Help:      "Fetch results discarded after a wallet or configuration change.",
			}, []string{"fetch"}),
		}
		prometheus.MustRegister(
			minterRegistry.submissions,
			minterRegistry.rejections,
			minterRegistry.approvals,
			minterRegistry.latency,
			minterRegistry.stale,
		)
	})
	return minterRegistry
}

// ObserveSubmission records a submitted purchase and, on success, how long
// it took to confirm.
func (m *MinterMetrics) ObserveSubmission(action, path string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	action = labelOrUnknown(action)
	outcome := "confirmed"
	if err != nil {
		outcome = "failed"
	}
	m.submissions.WithLabelValues(action, labelOrUnknown(path), outcome).Inc()
	if err == nil {
		m.latency.WithLabelValues(action).Observe(duration.Seconds())
	}
}

// RecordRejection increments the rejection counter for a validation code.
func (m *MinterMetrics) RecordRejection(code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(labelOrUnknown(code)).Inc()
}

// RecordApproval increments the approval counter.
func (m *MinterMetrics) RecordApproval(err error) {
	if m == nil {
		return
	}
	outcome := "confirmed"
	if err != nil {
		outcome = "failed"
	}
	m.approvals.WithLabelValues(outcome).Inc()
}

// RecordStale increments the discarded-result counter for fetch.
func (m *MinterMetrics) RecordStale(fetch string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(labelOrUnknown(fetch)).Inc()
}

// GatewayMetrics tracks quote API requests.
type GatewayMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// Gateway returns the lazily-initialised registry for the quote API.
func Gateway() *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &GatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftminter",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Quote API requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftminter",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Quote API errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftminter",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for quote API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.errors,
			gatewayRegistry.latency,
		)
	})
	return gatewayRegistry
}

// Observe records the outcome of a request. status is the HTTP status that
// was written to the client.
func (m *GatewayMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	route = labelOrUnknown(route)
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

func labelOrUnknown(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
