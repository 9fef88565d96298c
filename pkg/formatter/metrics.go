package formatter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the formatting service.
type Metrics struct {
	// RequestsTotal counts formatting requests by result
	// (formatted, denied, failed).
	RequestsTotal *prometheus.CounterVec

	// Duration observes end-to-end formatting latency in seconds.
	Duration prometheus.Histogram

	// TokensUsed observes total tokens per formatted request.
	TokensUsed prometheus.Histogram

	// EstimateError observes the signed difference between estimated and
	// actual token counts, for tuning the chars-per-token ratio.
	EstimateError prometheus.Histogram
}

// NewMetrics creates formatting service metrics registered with reg.
// A nil registerer uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gigaformat_requests_total",
			Help: "Total formatting requests by result",
		}, []string{"result"}),

		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gigaformat_request_duration_seconds",
			Help:    "End-to-end formatting request duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		TokensUsed: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gigaformat_request_tokens",
			Help:    "Total tokens consumed per formatted request",
			Buckets: []float64{50, 100, 250, 500, 1000, 1500, 2000},
		}),

		EstimateError: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gigaformat_estimate_error_tokens",
			Help:    "Estimated minus actual token count per request",
			Buckets: []float64{-500, -250, -100, -50, 0, 50, 100, 250, 500},
		}),
	}
}
