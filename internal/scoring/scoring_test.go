package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rulepack"
)

func testRulepack(t *testing.T) *domain.Rulepack {
	t.Helper()
	snap, err := rulepack.LoadFile("../rulepack/testdata/rulepack.yaml")
	require.NoError(t, err)
	return snap.Rulepack
}

func ptr[T any](v T) *T {
	return &v
}

func effective(rp *domain.Rulepack, in *domain.CaseInput) domain.EffectiveThresholds {
	return in.EffectiveThresholds(rp)
}

func TestGeo(t *testing.T) {
	rp := testRulepack(t)

	tests := []struct {
		name   string
		geo    domain.GeoFeatures
		score  int
		label  domain.Label
		reason string
	}{
		{
			name:   "no exposure",
			geo:    domain.GeoFeatures{Label: "medium", PaymentCountries: []string{"UAE"}},
			score:  10,
			label:  domain.LabelMedium,
			reason: "Geo exposure aligns with declared residency and sources.",
		},
		{
			name:   "greylist match ignores case and reports list entry",
			geo:    domain.GeoFeatures{Label: "low", CustomerCountry: "UAE", PaymentCountries: []string{"pakistan"}},
			score:  10,
			label:  domain.LabelLow,
			reason: "Customer residency is UAE (neutral), but remittance to FATF-greylisted jurisdiction noted (Pakistan).",
		},
		{
			name:   "greylist uses default customer country",
			geo:    domain.GeoFeatures{PaymentCountries: []string{"Nigeria"}},
			score:  10,
			label:  domain.LabelLow,
			reason: "Customer residency is UAE (neutral), but remittance to FATF-greylisted jurisdiction noted (Nigeria).",
		},
		{
			name:   "blacklist wins over greylist",
			geo:    domain.GeoFeatures{Label: "high", PaymentCountries: []string{"Pakistan", "IRAN"}},
			score:  35,
			label:  domain.LabelHigh,
			reason: "Payments involve FATF blacklisted jurisdiction (Iran).",
		},
		{
			name:   "unrecognized label",
			geo:    domain.GeoFeatures{Label: "extreme"},
			score:  5,
			label:  domain.LabelLow,
			reason: "Geo exposure aligns with declared residency and sources.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &domain.CaseInput{RiskFeatures: domain.RiskFeatures{Geo: tt.geo}}
			res := Geo(rp, in, NewRecorder())
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, tt.label, res.Label)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Nil(t, res.HardRoute)
		})
	}
}

func TestGeo_RecordsDefaults(t *testing.T) {
	rp := testRulepack(t)
	rec := NewRecorder()

	Geo(rp, &domain.CaseInput{RiskFeatures: domain.RiskFeatures{Geo: domain.GeoFeatures{PaymentCountries: []string{"Pakistan"}}}}, rec)

	assert.Equal(t, []domain.DefaultApplied{
		{Dimension: domain.DimensionGeo, Field: "risk_features.geo.label", Default: "low"},
		{Dimension: domain.DimensionGeo, Field: "risk_features.geo.customer_country", Default: "UAE"},
	}, rec.Applied())
}

func TestPEPSanctions(t *testing.T) {
	rp := testRulepack(t)

	check := func(s domain.ScreeningStatus) *domain.StatusCheck {
		return &domain.StatusCheck{Status: s}
	}

	tests := []struct {
		name      string
		screening domain.ScreeningSummary
		score     int
		label     domain.Label
		reason    string
		hardRoute bool
	}{
		{
			name:      "sanctions match",
			screening: domain.ScreeningSummary{Sanctions: check("match"), PEP: check("clear")},
			score:     40,
			label:     domain.LabelHigh,
			reason:    "Confirmed sanctions or PEP match; mandatory enhanced due diligence.",
			hardRoute: true,
		},
		{
			name:      "pep match outranks possible sanctions",
			screening: domain.ScreeningSummary{Sanctions: check("possible"), PEP: check("match")},
			score:     40,
			label:     domain.LabelHigh,
			reason:    "Confirmed sanctions or PEP match; mandatory enhanced due diligence.",
			hardRoute: true,
		},
		{
			name:      "possible",
			screening: domain.ScreeningSummary{PEP: check("possible")},
			score:     15,
			label:     domain.LabelMedium,
			reason:    "Possible PEP or sanctions match pending disposition.",
		},
		{
			name:   "absent statuses are clear",
			score:  0,
			label:  domain.LabelLow,
			reason: "No sanctions or PEP matches.",
		},
		{
			name:      "unrecognized status is clear",
			screening: domain.ScreeningSummary{Sanctions: check("pending"), PEP: check("")},
			score:     0,
			label:     domain.LabelLow,
			reason:    "No sanctions or PEP matches.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := PEPSanctions(rp, &domain.CaseInput{Screening: tt.screening}, NewRecorder())
			require.NoError(t, err)
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, tt.label, res.Label)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.hardRoute {
				require.NotNil(t, res.HardRoute)
				assert.Equal(t, domain.RouteEDD, *res.HardRoute)
			} else {
				assert.Nil(t, res.HardRoute)
			}
		})
	}
}

func TestPEPSanctions_TierUndefined(t *testing.T) {
	rp := testRulepack(t)
	tiers := make(map[domain.ScreeningStatus]domain.ScreeningTier)
	for k, v := range rp.Dimensions.PEPSanctions.Tiers {
		if k != domain.StatusPossible {
			tiers[k] = v
		}
	}
	rp.Dimensions.PEPSanctions.Tiers = tiers

	in := &domain.CaseInput{Screening: domain.ScreeningSummary{PEP: &domain.StatusCheck{Status: "possible"}}}
	_, err := PEPSanctions(rp, in, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTierUndefined)
}

func TestAdverseMedia(t *testing.T) {
	rp := testRulepack(t)

	tests := []struct {
		name   string
		media  *domain.AdverseMedia
		score  int
		label  domain.Label
		reason string
	}{
		{
			name:   "absent",
			score:  0,
			label:  domain.LabelLow,
			reason: "No negative media hits in top-tier news sources.",
		},
		{
			name:   "high",
			media:  &domain.AdverseMedia{Severity: "high", Hits: 3},
			score:  20,
			label:  domain.LabelHigh,
			reason: "Adverse media severity high (3 hits).",
		},
		{
			name:   "unrecognized severity",
			media:  &domain.AdverseMedia{Severity: "catastrophic", Hits: 1},
			score:  0,
			label:  domain.LabelLow,
			reason: "Adverse media severity catastrophic (1 hits).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &domain.CaseInput{Screening: domain.ScreeningSummary{AdverseMedia: tt.media}}
			res := AdverseMedia(rp, in, NewRecorder())
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, tt.label, res.Label)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestPatternRisk(t *testing.T) {
	rp := testRulepack(t)

	t.Run("salaried with high cash", func(t *testing.T) {
		in := &domain.CaseInput{
			PatternTag:   "WPS_Salary",
			RiskFeatures: domain.RiskFeatures{Channel: domain.ChannelFeatures{CashIntensity: "high"}},
		}
		res := PatternRisk(rp, in, NewRecorder())
		assert.Equal(t, 13, res.Score)
		assert.Equal(t, domain.LabelMedium, res.Label)
		assert.Equal(t, "Large cash deposits inconsistent with declared salaried profile. Potential layering risk.", res.Reason)
	})

	t.Run("all modifiers", func(t *testing.T) {
		in := &domain.CaseInput{
			PatternTag:   "Salary_Plus_Property",
			RiskFeatures: domain.RiskFeatures{Channel: domain.ChannelFeatures{CashIntensity: "high"}},
			DeclaredVsDiscovered: []domain.DeclaredDiscovered{
				{SourceType: "Rental Income", Alignment: "mismatch"},
				{SourceType: "Dividend", Alignment: "missing"},
			},
		}
		res := PatternRisk(rp, in, NewRecorder())
		assert.Equal(t, 8+8+5+4, res.Score)
		assert.Equal(t, domain.LabelHigh, res.Label)
		assert.Equal(t, "Large cash deposits inconsistent with declared salaried profile. Potential layering risk.; "+
			"Mismatch in declared vs discovered rental properties.; "+
			"Dividend income declared without sufficient proof.", res.Reason)
	})

	t.Run("business owner cash is not salaried", func(t *testing.T) {
		in := &domain.CaseInput{
			PatternTag:   "Business_Owner",
			RiskFeatures: domain.RiskFeatures{Channel: domain.ChannelFeatures{CashIntensity: "high"}},
		}
		res := PatternRisk(rp, in, NewRecorder())
		assert.Equal(t, 12, res.Score)
		assert.Equal(t, "Pattern risk evaluated for Business_Owner.", res.Reason)
	})

	t.Run("aligned sources do not fire", func(t *testing.T) {
		in := &domain.CaseInput{
			PatternTag: "Inheritance",
			DeclaredVsDiscovered: []domain.DeclaredDiscovered{
				{SourceType: "Property Holdings", Alignment: "aligned"},
				{SourceType: "Dividend"},
			},
		}
		res := PatternRisk(rp, in, NewRecorder())
		assert.Equal(t, 6, res.Score)
		assert.Equal(t, domain.LabelLow, res.Label)
	})

	t.Run("missing tag falls back to Other", func(t *testing.T) {
		rec := NewRecorder()
		res := PatternRisk(rp, &domain.CaseInput{}, rec)
		assert.Equal(t, 10, res.Score)
		assert.Equal(t, domain.LabelMedium, res.Label)
		assert.Equal(t, "Pattern risk evaluated for Other.", res.Reason)
		assert.Equal(t, []domain.DefaultApplied{
			{Dimension: domain.DimensionPatternRisk, Field: "pattern_tag", Default: "Other"},
		}, rec.Applied())
	})

	t.Run("unknown tag uses Other base", func(t *testing.T) {
		res := PatternRisk(rp, &domain.CaseInput{PatternTag: "Lottery"}, NewRecorder())
		assert.Equal(t, 10, res.Score)
		assert.Equal(t, "Pattern risk evaluated for Lottery.", res.Reason)
	})
}

func TestEvidenceGaps(t *testing.T) {
	rp := testRulepack(t)

	t.Run("issue points are capped", func(t *testing.T) {
		issues := make([]domain.Issue, 50)
		for i := range issues {
			issues[i] = domain.Issue{Type: "MISSING_EVIDENCE", ResidualImpact: "high"}
		}
		in := &domain.CaseInput{Issues: issues, SufficiencyAfterHITL: ptr(0.9)}
		res := EvidenceGaps(rp, in, effective(rp, in), NewRecorder())

		// base when_ok (2) + capped issue points (10)
		assert.Equal(t, 12, res.Score)
		assert.Equal(t, "Missing documentary proof for one or more declared sources.", res.Reason)
	})

	t.Run("alignment points are capped", func(t *testing.T) {
		items := make([]domain.DeclaredDiscovered, 50)
		for i := range items {
			items[i] = domain.DeclaredDiscovered{SourceType: "Salary", Alignment: "missing"}
		}
		in := &domain.CaseInput{SufficiencyAfterHITL: ptr(0.9), DeclaredVsDiscovered: items}
		res := EvidenceGaps(rp, in, effective(rp, in), NewRecorder())

		// 50 x 5 points, capped at 10
		assert.Equal(t, 2+10, res.Score)
	})

	t.Run("unknown impact and alignment are recorded", func(t *testing.T) {
		in := &domain.CaseInput{
			SufficiencyAfterHITL: ptr(0.9),
			Issues:               []domain.Issue{{Type: "OTHER", ResidualImpact: "critical"}},
			DeclaredVsDiscovered: []domain.DeclaredDiscovered{{SourceType: "Salary", Alignment: "MISSING"}},
		}
		rec := NewRecorder()
		res := EvidenceGaps(rp, in, effective(rp, in), rec)

		assert.Equal(t, 2, res.Score)
		assert.Equal(t, []domain.DefaultApplied{
			{Dimension: domain.DimensionEvidenceGaps, Field: "issues.residual_impact", Value: "critical", Default: "0"},
			{Dimension: domain.DimensionEvidenceGaps, Field: "declared_vs_discovered.alignment", Value: "MISSING", Default: "0"},
		}, rec.Applied())
	})

	t.Run("known grades record nothing", func(t *testing.T) {
		in := &domain.CaseInput{
			SufficiencyAfterHITL: ptr(0.9),
			Issues:               []domain.Issue{{Type: "OTHER", ResidualImpact: "none"}},
			DeclaredVsDiscovered: []domain.DeclaredDiscovered{{SourceType: "Salary", Alignment: "aligned"}},
		}
		rec := NewRecorder()
		EvidenceGaps(rp, in, effective(rp, in), rec)
		assert.Empty(t, rec.Applied())
	})

	t.Run("low sufficiency", func(t *testing.T) {
		in := &domain.CaseInput{
			SufficiencyAfterHITL: ptr(0.5),
			Issues:               []domain.Issue{{Type: "OTHER", ResidualImpact: "medium"}},
			DeclaredVsDiscovered: []domain.DeclaredDiscovered{{SourceType: "Property Holdings", Alignment: "partial"}},
		}
		res := EvidenceGaps(rp, in, effective(rp, in), NewRecorder())
		assert.Equal(t, 8+3+2, res.Score)
		assert.Equal(t, domain.LabelMedium, res.Label)
		assert.Equal(t, "Evidence sufficiency below policy threshold.; Declared properties/dividends not fully evidenced.", res.Reason)
	})

	t.Run("override threshold", func(t *testing.T) {
		in := &domain.CaseInput{
			SufficiencyAfterHITL: ptr(0.5),
			Thresholds:           domain.ThresholdOverrides{SufficiencyMin: ptr(0.4)},
		}
		res := EvidenceGaps(rp, in, effective(rp, in), NewRecorder())
		assert.Equal(t, 2, res.Score)
		assert.Equal(t, domain.LabelLow, res.Label)
		assert.Equal(t, "Residual gaps assessed post-HITL.", res.Reason)
	})

	t.Run("missing sufficiency counts as zero", func(t *testing.T) {
		rec := NewRecorder()
		in := &domain.CaseInput{}
		res := EvidenceGaps(rp, in, effective(rp, in), rec)
		assert.Equal(t, 8, res.Score)
		assert.Equal(t, domain.LabelMedium, res.Label)
		assert.Contains(t, rec.Applied(), domain.DefaultApplied{
			Dimension: domain.DimensionEvidenceGaps, Field: "sufficiency_after_hitl", Default: "0",
		})
	})
}

func TestProductChannel(t *testing.T) {
	rp := testRulepack(t)

	tests := []struct {
		name     string
		features domain.RiskFeatures
		score    int
		label    domain.Label
		reason   string
	}{
		{
			name:   "defaults",
			score:  3,
			label:  domain.LabelLow,
			reason: "Product/channel risk per profile.",
		},
		{
			name: "home jurisdiction ignores case",
			features: domain.RiskFeatures{
				Geo: domain.GeoFeatures{SourceCountries: []string{"uae"}, PaymentCountries: []string{"UAE"}},
			},
			score:  3,
			label:  domain.LabelLow,
			reason: "Product/channel risk per profile.",
		},
		{
			name: "cross border",
			features: domain.RiskFeatures{
				Product: domain.ProductFeatures{Label: "medium"},
				Channel: domain.ChannelFeatures{OnboardingChannel: "digital"},
				Geo:     domain.GeoFeatures{SourceCountries: []string{"UK"}},
			},
			score:  6 + 2 + 3,
			label:  domain.LabelMedium,
			reason: "Cross-border product/channel usage detected.",
		},
		{
			name: "offshore and cross border",
			features: domain.RiskFeatures{
				Product: domain.ProductFeatures{Label: "high", Products: []string{"Current Account", "Offshore Brokerage"}},
				Channel: domain.ChannelFeatures{OnboardingChannel: "introducer"},
				Geo:     domain.GeoFeatures{PaymentCountries: []string{"Singapore"}},
			},
			score:  10 + 4 + 3 + 5,
			label:  domain.LabelHigh,
			reason: "Use of offshore investment platform detected; cross-border complexity.",
		},
		{
			name: "keyword spans the joined product list",
			features: domain.RiskFeatures{
				Product: domain.ProductFeatures{Label: "low", Products: []string{"International", "Brokerage"}},
			},
			score:  3,
			label:  domain.LabelLow,
			reason: "Product/channel risk per profile.",
		},
		{
			name: "unknown label and channel",
			features: domain.RiskFeatures{
				Product: domain.ProductFeatures{Label: "bespoke"},
				Channel: domain.ChannelFeatures{OnboardingChannel: "carrier pigeon"},
			},
			score:  5,
			label:  domain.LabelLow,
			reason: "Product/channel risk per profile.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ProductChannel(rp, &domain.CaseInput{RiskFeatures: tt.features}, NewRecorder())
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, tt.label, res.Label)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestEvaluate(t *testing.T) {
	rp := testRulepack(t)
	in := &domain.CaseInput{
		PatternTag:           "WPS_Salary",
		SufficiencyAfterHITL: ptr(0.8),
		Screening: domain.ScreeningSummary{
			AdverseMedia: &domain.AdverseMedia{Severity: "low", Hits: 1},
		},
		RiskFeatures: domain.RiskFeatures{
			Geo:     domain.GeoFeatures{Label: "low", PaymentCountries: []string{"Philippines"}},
			Channel: domain.ChannelFeatures{CashIntensity: "high"},
		},
	}

	dims, err := Evaluate(rp, in, effective(rp, in), NewRecorder())
	require.NoError(t, err)

	assert.Equal(t, 10, dims.Geo.Score)
	assert.Equal(t, 0, dims.PEPSanctions.Score)
	assert.Equal(t, 5, dims.AdverseMedia.Score)
	assert.Equal(t, 13, dims.PatternRisk.Score)
	assert.Equal(t, 2, dims.EvidenceGaps.Score)
	assert.Equal(t, 3+3, dims.ProductChannel.Score)
	assert.Equal(t, 10+0+5+13+2+6, dims.Total())
}

func TestDetect(t *testing.T) {
	rp := testRulepack(t)
	in := &domain.CaseInput{
		PatternTag: "Salary_Plus_Property",
		RiskFeatures: domain.RiskFeatures{
			Channel: domain.ChannelFeatures{CashIntensity: "high"},
			Product: domain.ProductFeatures{Products: []string{"Family Trust"}},
		},
		DeclaredVsDiscovered: []domain.DeclaredDiscovered{{SourceType: "Property Holdings", Alignment: "partial"}},
	}

	assert.Equal(t, Signals{
		SalariedHighCash: true,
		RentalMismatch:   true,
		OffshoreHint:     true,
	}, Detect(rp, in))
}

func TestRecorder_Nil(t *testing.T) {
	var rec *Recorder
	rec.Record("geo_risk", "label", "", "low")
	assert.Nil(t, rec.Applied())
}
