// Package metrics exposes Prometheus instrumentation for evaluations and
// rulepack reloads. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Metrics holds the Kestrel collectors.
type Metrics struct {
	Assessments        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	EvaluationErrors   *prometheus.CounterVec
	DefaultsApplied    *prometheus.CounterVec
	RedFlags           *prometheus.CounterVec
	RulepackReloads    *prometheus.CounterVec
	RulepackInfo       *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Assessments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_assessments_total",
			Help: "Total number of completed assessments",
		}, []string{"route", "risk_label", "route_reason"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_evaluation_duration_seconds",
			Help:    "Duration of case evaluations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		EvaluationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_evaluation_errors_total",
			Help: "Total number of evaluations that failed",
		}, []string{"reason"}),
		DefaultsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_defaults_applied_total",
			Help: "Total number of defaults substituted for missing or unrecognised inputs",
		}, []string{"dimension", "field"}),
		RedFlags: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_red_flags_total",
			Help: "Total number of red flags raised",
		}, []string{"flag"}),
		RulepackReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_rulepack_reloads_total",
			Help: "Total number of rulepack reload attempts",
		}, []string{"trigger", "status"}),
		RulepackInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kestrel_rulepack_info",
			Help: "Active rulepack version and checksum",
		}, []string{"version", "checksum"}),
	}
}

// ObserveAssessment records a completed assessment.
func (m *Metrics) ObserveAssessment(a *domain.Assessment, start time.Time) {
	if m == nil {
		return
	}
	m.EvaluationDuration.Observe(time.Since(start).Seconds())
	m.Assessments.WithLabelValues(string(a.Route), string(a.RiskLabel), string(a.Metadata.RouteReason)).Inc()
	for _, d := range a.DefaultsApplied {
		m.DefaultsApplied.WithLabelValues(d.Dimension, d.Field).Inc()
	}
	for _, f := range a.RedFlags {
		m.RedFlags.WithLabelValues(f).Inc()
	}
}

// IncrementEvaluationError records a failed evaluation.
func (m *Metrics) IncrementEvaluationError(reason string) {
	if m == nil {
		return
	}
	m.EvaluationErrors.WithLabelValues(reason).Inc()
}

// ObserveReload records a reload attempt. On success the info gauge is
// switched to the new version.
func (m *Metrics) ObserveReload(trigger string, version, checksum string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RulepackReloads.WithLabelValues(trigger, domain.RulepackLoadRejected).Inc()
		return
	}
	m.RulepackReloads.WithLabelValues(trigger, domain.RulepackLoadApplied).Inc()
	m.RulepackInfo.Reset()
	m.RulepackInfo.WithLabelValues(version, checksum).Set(1)
}
