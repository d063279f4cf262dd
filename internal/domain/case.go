package domain

// CaseInput carries the structured facts of a source-of-wealth case.
// Every nested block is optional; evaluators substitute documented defaults
// for anything missing and record each substitution.
type CaseInput struct {
	CaseID               string               `json:"case_id"`
	Thresholds           ThresholdOverrides   `json:"thresholds"`
	Screening            ScreeningSummary     `json:"screening_summary"`
	RiskFeatures         RiskFeatures         `json:"risk_features"`
	DeclaredVsDiscovered []DeclaredDiscovered `json:"declared_vs_discovered"`
	Issues               []Issue              `json:"issues"`
	EvidenceSources      []EvidenceSource     `json:"evidence_sources" validate:"dive"`
	SufficiencyAfterHITL *float64             `json:"sufficiency_after_hitl,omitempty" validate:"omitempty,gte=0,lte=1"`
	PatternTag           string               `json:"pattern_tag,omitempty"`
}

// ThresholdOverrides replaces rulepack defaults for a single request.
type ThresholdOverrides struct {
	SufficiencyMin *float64 `json:"sufficiency_min,omitempty" validate:"omitempty,gte=0,lte=1"`
	EDDCutoffScore *float64 `json:"edd_cutoff_score,omitempty" validate:"omitempty,gte=0"`
}

// ScreeningSummary is the pre-computed output of the screening provider.
type ScreeningSummary struct {
	Sanctions    *StatusCheck  `json:"sanctions,omitempty"`
	PEP          *StatusCheck  `json:"pep,omitempty"`
	AdverseMedia *AdverseMedia `json:"adverse_media,omitempty"`
}

// StatusCheck holds a single screening status.
type StatusCheck struct {
	Status ScreeningStatus `json:"status,omitempty"`
}

// AdverseMedia summarises negative news coverage.
type AdverseMedia struct {
	Severity string `json:"severity,omitempty"`
	Hits     int    `json:"hits" validate:"gte=0"`
}

// RiskFeatures groups the geo, product and channel facts.
type RiskFeatures struct {
	Geo     GeoFeatures     `json:"geo"`
	Product ProductFeatures `json:"product"`
	Channel ChannelFeatures `json:"channel"`
}

// GeoFeatures describes residency and the countries funds move through.
type GeoFeatures struct {
	Label            string   `json:"label,omitempty"`
	CustomerCountry  string   `json:"customer_country,omitempty"`
	SourceCountries  []string `json:"source_countries,omitempty"`
	PaymentCountries []string `json:"payment_countries,omitempty"`
}

// ProductFeatures describes the products the customer holds.
type ProductFeatures struct {
	Label    string   `json:"label,omitempty"`
	Products []string `json:"products,omitempty"`
}

// ChannelFeatures describes how the customer was onboarded and transacts.
type ChannelFeatures struct {
	OnboardingChannel string `json:"onboarding_channel,omitempty"`
	CashIntensity     string `json:"cash_intensity,omitempty"`
}

// DeclaredDiscovered compares a declared wealth source with discovered evidence.
type DeclaredDiscovered struct {
	SourceType string    `json:"source_type"`
	Alignment  Alignment `json:"alignment,omitempty"`
}

// Issue is a residual finding left after human review.
type Issue struct {
	Type           string `json:"type"`
	ResidualImpact string `json:"residual_impact,omitempty"`
}

// EvidenceSource is one piece of evidence with its extraction confidence.
type EvidenceSource struct {
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Sufficiency returns the post-review sufficiency, or 0 when absent.
func (c *CaseInput) Sufficiency() float64 {
	if c.SufficiencyAfterHITL == nil {
		return 0
	}
	return *c.SufficiencyAfterHITL
}

// EffectiveThresholds resolves per-request overrides against rulepack defaults.
func (c *CaseInput) EffectiveThresholds(rp *Rulepack) EffectiveThresholds {
	eff := EffectiveThresholds{
		SufficiencyMin: rp.Thresholds.SufficiencyMinDefault,
		EDDCutoffScore: rp.Thresholds.EDDCutoffScoreDefault,
	}
	if c.Thresholds.SufficiencyMin != nil {
		eff.SufficiencyMin = *c.Thresholds.SufficiencyMin
	}
	if c.Thresholds.EDDCutoffScore != nil {
		eff.EDDCutoffScore = *c.Thresholds.EDDCutoffScore
	}
	return eff
}

// EffectiveThresholds are the thresholds in force for one evaluation.
type EffectiveThresholds struct {
	SufficiencyMin float64 `json:"sufficiency_min"`
	EDDCutoffScore float64 `json:"edd_cutoff_score"`
}

// BelowSufficiency reports whether the case's evidence falls short.
func (c *CaseInput) BelowSufficiency(eff EffectiveThresholds) bool {
	return c.Sufficiency() < eff.SufficiencyMin
}

// HasGapFor reports whether any declared-vs-discovered item of the given
// source types carries a gap alignment.
func (c *CaseInput) HasGapFor(sourceTypes ...string) bool {
	for _, item := range c.DeclaredVsDiscovered {
		if !item.Alignment.IsGap() {
			continue
		}
		for _, st := range sourceTypes {
			if item.SourceType == st {
				return true
			}
		}
	}
	return false
}
