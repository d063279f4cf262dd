package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestObserveAssessment(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	a := &domain.Assessment{
		Route:     domain.RouteEDD,
		RiskLabel: domain.LabelHigh,
		RedFlags:  []string{"Cash deposits unexplained"},
		DefaultsApplied: []domain.DefaultApplied{
			{Dimension: domain.DimensionGeo, Field: "geo.label", Default: "low"},
		},
		Metadata: domain.AssessmentMetadata{RouteReason: domain.RouteReasonScoreCutoff},
	}
	m.ObserveAssessment(a, time.Now())
	m.ObserveAssessment(a, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Assessments.WithLabelValues("EDD", "high", "score_cutoff")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RedFlags.WithLabelValues("Cash deposits unexplained")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DefaultsApplied.WithLabelValues(domain.DimensionGeo, "geo.label")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.EvaluationDuration))
}

func TestObserveReload(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveReload("startup", "v1", "aaa", nil)
	m.ObserveReload("api", "v2", "bbb", nil)
	m.ObserveReload("api", "", "", errors.New("bad bands"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RulepackReloads.WithLabelValues("api", domain.RulepackLoadApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RulepackReloads.WithLabelValues("api", domain.RulepackLoadRejected)))

	// Only the active version is reported.
	require.Equal(t, 1, testutil.CollectAndCount(m.RulepackInfo))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RulepackInfo.WithLabelValues("v2", "bbb")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAssessment(&domain.Assessment{}, time.Now())
		m.IncrementEvaluationError("evaluation")
		m.ObserveReload("api", "v1", "aaa", nil)
	})
}
