package domain

// Rulepack is the validated, immutable rule configuration used by every
// evaluator. It is built once per load by the rulepack package and never
// mutated afterwards; a reload produces a new value.
type Rulepack struct {
	Version    string              `json:"rulepack_version"`
	PolicyRefs []string            `json:"policy_refs"`
	Assessor   AssessorConfig      `json:"assessor"`
	Thresholds Thresholds          `json:"thresholds"`
	Dimensions DimensionRules      `json:"dimensions"`
	RedFlags   []RedFlagDefinition `json:"red_flags"`
}

// AssessorConfig identifies the automated assessor in results.
type AssessorConfig struct {
	Agent string `json:"agent"`
	Mode  string `json:"mode"`
}

// Thresholds holds the rulepack-wide defaults.
type Thresholds struct {
	SufficiencyMinDefault float64 `json:"sufficiency_min_default"`
	EDDCutoffScoreDefault float64 `json:"edd_cutoff_score_default"`
	Bands                 Bands   `json:"bands"`
}

// Bands are the total-score boundaries for the overall risk label.
// High must not be below Medium.
type Bands struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// DimensionRules groups the per-dimension rule tables.
type DimensionRules struct {
	Geo            GeoRules            `json:"geo_risk"`
	PEPSanctions   PEPSanctionsRules   `json:"pep_sanctions"`
	AdverseMedia   AdverseMediaRules   `json:"adverse_media"`
	PatternRisk    PatternRiskRules    `json:"pattern_risk"`
	EvidenceGaps   EvidenceGapRules    `json:"evidence_gaps"`
	ProductChannel ProductChannelRules `json:"product_channel"`
}

// GeoRules scores geography exposure.
type GeoRules struct {
	BaseByLabel map[string]int `json:"base"`
	GreyList    []string       `json:"grey"`
	BlackList   []string       `json:"black"`
	GreyBonus   int            `json:"grey_bonus"`
	BlackBonus  int            `json:"black_bonus"`
}

// PEPSanctionsRules holds the three screening tiers.
type PEPSanctionsRules struct {
	Tiers map[ScreeningStatus]ScreeningTier `json:"tiers"`
}

// ScreeningTier is the outcome applied when a screening tier wins.
type ScreeningTier struct {
	Score     int    `json:"score"`
	Label     Label  `json:"label"`
	Reason    string `json:"reason"`
	HardRoute *Route `json:"hard_route,omitempty"`
}

// AdverseMediaRules maps media severity to score and label.
type AdverseMediaRules struct {
	SeverityToScore map[string]int   `json:"severity_to_score"`
	SeverityToLabel map[string]Label `json:"severity_to_label"`
}

// PatternRiskRules scores the classified wealth pattern.
type PatternRiskRules struct {
	BaseByPattern        map[string]int `json:"base_by_pattern"`
	SalaryPatterns       []string       `json:"salary_patterns"`
	SalariedHighCash     int            `json:"salaried_high_cash"`
	RentalCountMismatch  int            `json:"rental_count_mismatch"`
	DividendMissingProof int            `json:"dividend_missing_proof"`
}

// IsSalaryPattern reports whether tag is one of the configured salary patterns.
func (r PatternRiskRules) IsSalaryPattern(tag string) bool {
	for _, p := range r.SalaryPatterns {
		if p == tag {
			return true
		}
	}
	return false
}

// EvidenceGapRules scores residual evidence gaps after review.
type EvidenceGapRules struct {
	BaseWhenLow        int               `json:"base_when_low"`
	BaseWhenOK         int               `json:"base_when_ok"`
	PerIssuePoints     map[string]int    `json:"per_issue_points"`
	MaxIssuePoints     int               `json:"max_issue_points"`
	AlignmentPoints    map[Alignment]int `json:"alignment_points"`
	MaxAlignmentPoints int               `json:"max_alignment_points"`
}

// ProductChannelRules scores product and onboarding channel usage.
type ProductChannelRules struct {
	BaseByLabel      map[string]int `json:"base_by_label"`
	ChannelAdders    map[string]int `json:"channel_adders"`
	NonHomeFlow      int            `json:"non_uae_flow"`
	OffshoreHint     int            `json:"offshore_investment_hint"`
	OffshoreKeywords []string       `json:"offshore_keywords"`
}

// RedFlagDefinition is a named condition evaluated after routing.
type RedFlagDefinition struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	When  string `json:"when"`
}
