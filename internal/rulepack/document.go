package rulepack

// The document types mirror the YAML layout of a rulepack file. Required
// scalars are pointers so a missing key can be told apart from a zero value;
// build() turns a validated document into a domain.Rulepack.

type document struct {
	Rulepack *rawRulepack `yaml:"rulepack" validate:"required"`
}

type rawRulepack struct {
	Version    string         `yaml:"rulepack_version"`
	PolicyRefs []string       `yaml:"policy_refs"`
	Assessor   *rawAssessor   `yaml:"assessor"`
	Thresholds *rawThresholds `yaml:"thresholds" validate:"required"`
	Dimensions *rawDimensions `yaml:"dimensions" validate:"required"`
	RedFlags   []rawRedFlag   `yaml:"red_flags" validate:"dive"`
}

type rawAssessor struct {
	Agent string `yaml:"agent"`
	Mode  string `yaml:"mode"`
}

type rawThresholds struct {
	SufficiencyMinDefault *float64  `yaml:"sufficiency_min_default" validate:"required,gte=0,lte=1"`
	EDDCutoffScoreDefault *float64  `yaml:"edd_cutoff_score_default" validate:"required,gte=0"`
	Bands                 *rawBands `yaml:"bands" validate:"required"`
}

type rawBands struct {
	High   *float64 `yaml:"high" validate:"required,gte=0"`
	Medium *float64 `yaml:"medium" validate:"required,gte=0"`
}

type rawDimensions struct {
	Geo            *rawGeo            `yaml:"geo_risk" validate:"required"`
	PEPSanctions   *rawPEPSanctions   `yaml:"pep_sanctions" validate:"required"`
	AdverseMedia   *rawAdverseMedia   `yaml:"adverse_media" validate:"required"`
	PatternRisk    *rawPatternRisk    `yaml:"pattern_risk" validate:"required"`
	EvidenceGaps   *rawEvidenceGaps   `yaml:"evidence_gaps" validate:"required"`
	ProductChannel *rawProductChannel `yaml:"product_channel" validate:"required"`
}

type rawGeo struct {
	ScoreMap  *rawGeoScoreMap  `yaml:"score_map" validate:"required"`
	Modifiers *rawGeoModifiers `yaml:"modifiers" validate:"required"`
}

type rawGeoScoreMap struct {
	Base map[string]int `yaml:"base" validate:"required,dive,gte=0"`
}

type rawGeoModifiers struct {
	FATFExposure *rawFATFExposure `yaml:"fatf_exposure" validate:"required"`
}

type rawFATFExposure struct {
	List    *rawFATFList    `yaml:"list" validate:"required"`
	AddIfIn *rawFATFAddIfIn `yaml:"add_if_in" validate:"required"`
}

type rawFATFList struct {
	Grey  []string `yaml:"grey"`
	Black []string `yaml:"black"`
}

type rawFATFAddIfIn struct {
	Grey  *int `yaml:"grey" validate:"required,gte=0"`
	Black *int `yaml:"black" validate:"required,gte=0"`
}

type rawPEPSanctions struct {
	Rules []rawTier `yaml:"rules" validate:"required,dive"`
}

type rawTier struct {
	When      string `yaml:"when" validate:"required,oneof=match possible clear"`
	Score     *int   `yaml:"score" validate:"required,gte=0"`
	Label     string `yaml:"label" validate:"required,oneof=low medium high"`
	Reason    string `yaml:"reason"`
	HardRoute string `yaml:"hard_route" validate:"omitempty,oneof=EDD Baseline"`
}

type rawAdverseMedia struct {
	Mapping *rawSeverityMapping `yaml:"mapping" validate:"required"`
}

type rawSeverityMapping struct {
	SeverityToScore map[string]int    `yaml:"severity_to_score" validate:"required,dive,gte=0"`
	SeverityToLabel map[string]string `yaml:"severity_to_label" validate:"required,dive,oneof=low medium high"`
}

type rawPatternRisk struct {
	BaseByPattern          map[string]int             `yaml:"base_by_pattern" validate:"required,dive,gte=0"`
	SalaryPatterns         []string                   `yaml:"salary_patterns"`
	InconsistencyModifiers *rawInconsistencyModifiers `yaml:"inconsistency_modifiers" validate:"required"`
}

type rawInconsistencyModifiers struct {
	SalariedHighCash     *int `yaml:"salaried_high_cash" validate:"required,gte=0"`
	RentalCountMismatch  *int `yaml:"rental_count_mismatch" validate:"required,gte=0"`
	DividendMissingProof *int `yaml:"dividend_missing_proof" validate:"required,gte=0"`
}

type rawEvidenceGaps struct {
	Scoring *rawGapScoring `yaml:"scoring" validate:"required"`
}

type rawGapScoring struct {
	BaseFromSufficiency    *rawSufficiencyBase `yaml:"base_from_sufficiency" validate:"required"`
	PerIssuePoints         map[string]int      `yaml:"per_issue_points" validate:"required,dive,gte=0"`
	MaxIssuePoints         *int                `yaml:"max_issue_points" validate:"required,gte=0"`
	PartialAlignmentPoints map[string]int      `yaml:"partial_alignment_points" validate:"required,dive,gte=0"`
}

type rawSufficiencyBase struct {
	WhenLow *int `yaml:"when_low" validate:"required,gte=0"`
	WhenOK  *int `yaml:"when_ok" validate:"required,gte=0"`
}

type rawProductChannel struct {
	BaseByLabel       map[string]int        `yaml:"base_by_label" validate:"required,dive,gte=0"`
	ChannelAdders     map[string]int        `yaml:"channel_adders" validate:"required,dive,gte=0"`
	CrossBorderAdders *rawCrossBorderAdders `yaml:"cross_border_adders" validate:"required"`
	OffshoreKeywords  []string              `yaml:"offshore_keywords"`
}

type rawCrossBorderAdders struct {
	NonUAEFlow             *int `yaml:"non_uae_flow" validate:"required,gte=0"`
	OffshoreInvestmentHint *int `yaml:"offshore_investment_hint" validate:"required,gte=0"`
}

type rawRedFlag struct {
	ID    string `yaml:"id" validate:"required"`
	Label string `yaml:"label" validate:"required"`
	When  string `yaml:"when" validate:"required"`
}
