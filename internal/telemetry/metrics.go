package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the advisor. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RankingTotal         *prometheus.CounterVec
	RankingDurationMs    prometheus.Histogram
	SelectionTotal       *prometheus.CounterVec
	BudgetAlertsTotal    *prometheus.CounterVec
	SpendUSDTotal        *prometheus.CounterVec
	ClockSkewTotal       prometheus.Counter
	EligibilityRejection *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RankingTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_ranking_total",
			Help: "Total ranking requests by outcome.",
		}, []string{"outcome"}),

		RankingDurationMs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "advisor_ranking_duration_ms",
			Help:    "Time spent scoring and ranking a candidate pool in milliseconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
		}),

		SelectionTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_selection_total",
			Help: "Active model resolutions by reason code.",
		}, []string{"reason"}),

		BudgetAlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_budget_alerts_total",
			Help: "Budget alerts fired by severity.",
		}, []string{"severity"}),

		SpendUSDTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_spend_usd_total",
			Help: "Recorded spend in USD.",
		}, []string{"provider", "model"}),

		ClockSkewTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "advisor_clock_skew_total",
			Help: "Budget evaluations whose clock was earlier than the last recorded spend event.",
		}),

		EligibilityRejection: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_eligibility_rejections_total",
			Help: "Candidates rejected by eligibility check.",
		}, []string{"check"}),
	}
}

// RecordRanking records the outcome ("ok", "insufficient_data", "invalid")
// and duration of one ranking request.
func (m *Metrics) RecordRanking(outcome string, durationMs float64) {
	if m == nil {
		return
	}
	m.RankingTotal.WithLabelValues(outcome).Inc()
	m.RankingDurationMs.Observe(durationMs)
}

func (m *Metrics) RecordSelection(reason string) {
	if m == nil {
		return
	}
	m.SelectionTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordBudgetAlert(severity string) {
	if m == nil {
		return
	}
	m.BudgetAlertsTotal.WithLabelValues(severity).Inc()
}

func (m *Metrics) RecordSpend(provider, model string, usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.SpendUSDTotal.WithLabelValues(provider, model).Add(usd)
}

func (m *Metrics) RecordClockSkew() {
	if m == nil {
		return
	}
	m.ClockSkewTotal.Inc()
}

func (m *Metrics) RecordEligibilityRejection(check string) {
	if m == nil {
		return
	}
	m.EligibilityRejection.WithLabelValues(check).Inc()
}
