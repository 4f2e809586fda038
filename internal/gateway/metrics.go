package gateway

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the model gateway.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TokensTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics for the gateway.
//
// This function uses sync.Once to ensure metrics are only registered once
// globally, preventing "duplicate metrics collector registration" panics.
//
// Metrics:
//   - gateway_requests_total{family,status} - Count of model calls
//   - gateway_request_duration_seconds{family} - Histogram of call latency
//   - gateway_tokens_total{kind} - Tokens consumed ("prompt") and produced ("completion")
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gateway_requests_total",
					Help: "Total number of model calls issued",
				},
				[]string{"family", "status"}, // family: "standard" or "reasoning"
			),

			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gateway_request_duration_seconds",
					Help:    "Duration of model calls in seconds",
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
				},
				[]string{"family"},
			),

			TokensTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gateway_tokens_total",
					Help: "Total tokens reported by the API",
				},
				[]string{"kind"}, // "prompt" or "completion"
			),
		}
	})

	return globalMetrics
}

// ObserveRequest records one model call with its outcome and duration.
func (m *Metrics) ObserveRequest(family, status string, durationSeconds float64) {
	m.RequestsTotal.WithLabelValues(family, status).Inc()
	m.RequestDuration.WithLabelValues(family).Observe(durationSeconds)
}

// AddTokens records token usage reported by a successful call.
func (m *Metrics) AddTokens(prompt, completion int) {
	m.TokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	m.TokensTotal.WithLabelValues("completion").Add(float64(completion))
}
