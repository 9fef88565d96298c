package quota

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the quota package.
type Metrics struct {
	// Quota checks
	checks  *prometheus.CounterVec
	denials *prometheus.CounterVec

	// Token spending
	tokensSpent prometheus.Counter

	// Current usage per scope
	usage *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// If reg is nil, the default Prometheus registerer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gigaformat_quota_checks_total",
				Help: "Total number of quota checks performed",
			},
			[]string{"result"},
		),

		denials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gigaformat_quota_denials_total",
				Help: "Total number of quota denials by violated scope",
			},
			[]string{"scope"},
		),

		tokensSpent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gigaformat_quota_tokens_spent_total",
				Help: "Total number of tokens recorded against the quota",
			},
		),

		usage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gigaformat_quota_usage_percentage",
				Help: "Current budget usage as a fraction of the limit (0.0-1.0)",
			},
			[]string{"scope"},
		),
	}
}

// RecordCheck records a quota check and its outcome.
func (m *Metrics) RecordCheck(allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.checks.WithLabelValues(result).Inc()
}

// RecordDenial records a quota denial for the violated scope.
func (m *Metrics) RecordDenial(scope Scope) {
	m.denials.WithLabelValues(string(scope)).Inc()
}

// RecordSpend records tokens charged against the quota.
func (m *Metrics) RecordSpend(tokens int) {
	m.tokensSpent.Add(float64(tokens))
}

// UpdateUsage updates the usage gauge for a scope.
func (m *Metrics) UpdateUsage(scope Scope, percentage float64) {
	m.usage.WithLabelValues(string(scope)).Set(percentage)
}
