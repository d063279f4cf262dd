package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Dimension names in canonical declaration order. The order is part of the
// output contract: it fixes JSON field order and breaks explanation ties.
const (
	DimensionGeo            = "geo_risk"
	DimensionPEPSanctions   = "pep_sanctions"
	DimensionAdverseMedia   = "adverse_media"
	DimensionPatternRisk    = "pattern_risk"
	DimensionEvidenceGaps   = "evidence_gaps"
	DimensionProductChannel = "product_channel"
)

// DimensionOrder lists the dimension names in canonical order.
var DimensionOrder = []string{
	DimensionGeo,
	DimensionPEPSanctions,
	DimensionAdverseMedia,
	DimensionPatternRisk,
	DimensionEvidenceGaps,
	DimensionProductChannel,
}

// DimensionResult is the output of a single dimension evaluator.
type DimensionResult struct {
	Score     int    `json:"score"`
	Label     Label  `json:"label"`
	Reason    string `json:"reason"`
	HardRoute *Route `json:"hard_route,omitempty"`
}

// Dimensions holds the six dimension results in canonical order.
type Dimensions struct {
	Geo            DimensionResult `json:"geo_risk"`
	PEPSanctions   DimensionResult `json:"pep_sanctions"`
	AdverseMedia   DimensionResult `json:"adverse_media"`
	PatternRisk    DimensionResult `json:"pattern_risk"`
	EvidenceGaps   DimensionResult `json:"evidence_gaps"`
	ProductChannel DimensionResult `json:"product_channel"`
}

// NamedDimension pairs a dimension result with its name.
type NamedDimension struct {
	Name   string
	Result DimensionResult
}

// Ordered returns the dimensions in canonical order.
func (d *Dimensions) Ordered() []NamedDimension {
	return []NamedDimension{
		{DimensionGeo, d.Geo},
		{DimensionPEPSanctions, d.PEPSanctions},
		{DimensionAdverseMedia, d.AdverseMedia},
		{DimensionPatternRisk, d.PatternRisk},
		{DimensionEvidenceGaps, d.EvidenceGaps},
		{DimensionProductChannel, d.ProductChannel},
	}
}

// Total is the exact sum of the six dimension scores.
func (d *Dimensions) Total() int {
	total := 0
	for _, nd := range d.Ordered() {
		total += nd.Result.Score
	}
	return total
}

// HardRouted reports whether any dimension forces a route, returning it.
func (d *Dimensions) HardRouted() (Route, bool) {
	for _, nd := range d.Ordered() {
		if nd.Result.HardRoute != nil {
			return *nd.Result.HardRoute, true
		}
	}
	return "", false
}

// Confidence is a model confidence in [0,1]. It is kept unrounded in memory
// and rounded to two decimal places when serialized.
type Confidence float64

// ConfidencePrecision is the number of decimal places emitted on the wire.
const ConfidencePrecision = 2

// MarshalJSON renders the confidence rounded to ConfidencePrecision places.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return []byte(c.wire().String()), nil
}

// Rounded returns the serialized value as a float.
func (c Confidence) Rounded() float64 {
	return c.wire().InexactFloat64()
}

// wire rounds the exact binary value of c, so 0.825 (stored just below
// the tie) becomes 0.82 rather than 0.83.
func (c Confidence) wire() decimal.Decimal {
	return decimal.RequireFromString(strconv.FormatFloat(float64(c), 'f', ConfidencePrecision, 64))
}

// Assessor identifies who produced an assessment.
type Assessor struct {
	Agent         string  `json:"agent"`
	Mode          string  `json:"mode"`
	HumanReviewer *string `json:"human_reviewer"`
}

// DefaultApplied records a default substituted for a missing or unrecognised
// input value, so every substitution stays attributable in the audit trail.
type DefaultApplied struct {
	Dimension string `json:"dimension"`
	Field     string `json:"field"`
	Value     string `json:"value,omitempty"`
	Default   string `json:"default"`
}

// AssessmentStatusAssessed is the status of every completed assessment.
const AssessmentStatusAssessed = "assessed"

// Assessment is the complete result of evaluating one case.
type Assessment struct {
	ID                  string             `json:"id"`
	TenantID            string             `json:"tenant_id,omitempty"`
	CaseID              string             `json:"case_id"`
	RiskScore           int                `json:"risk_score"`
	RiskLabel           Label              `json:"risk_label"`
	Route               Route              `json:"route"`
	Status              string             `json:"status"`
	ModelConfidence     Confidence         `json:"model_confidence"`
	Dimensions          Dimensions         `json:"dimensions"`
	RedFlags            []string           `json:"red_flags"`
	PolicyRefs          []string           `json:"policy_refs"`
	RulepackVersion     string             `json:"rulepack_version"`
	DecisionExplanation string             `json:"decision_explanation"`
	Timestamp           Timestamp          `json:"timestamp"`
	Assessor            Assessor           `json:"assessor"`
	DefaultsApplied     []DefaultApplied   `json:"defaults_applied,omitempty"`
	Metadata            AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata carries processing details that are not part of the
// scoring contract.
type AssessmentMetadata struct {
	TraceID          string              `json:"trace_id,omitempty"`
	RouteReason      RouteReason         `json:"route_reason"`
	Thresholds       EffectiveThresholds `json:"thresholds"`
	RulepackChecksum string              `json:"rulepack_checksum,omitempty"`
	TotalMs          int64               `json:"total_ms"`
	EngineVersion    string              `json:"engine_version"`
}

// Timestamp is a UTC instant serialized at second precision with a Z suffix.
type Timestamp time.Time

const timestampLayout = "2006-01-02T15:04:05Z"

// NewTimestamp truncates t to whole seconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Truncate(time.Second))
}

// Time returns the underlying time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// MarshalJSON renders the timestamp as 2006-01-02T15:04:05Z.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(timestampLayout) + `"`), nil
}

// UnmarshalJSON accepts RFC 3339 timestamps.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	parsed, err := time.Parse(`"`+time.RFC3339+`"`, string(b))
	if err != nil {
		return err
	}
	*t = NewTimestamp(parsed)
	return nil
}

// AssessmentResponse is the trimmed view returned to API clients when the
// caller only needs the routing decision.
type AssessmentResponse struct {
	ID              string     `json:"id"`
	CaseID          string     `json:"case_id"`
	RiskScore       int        `json:"risk_score"`
	RiskLabel       Label      `json:"risk_label"`
	Route           Route      `json:"route"`
	ModelConfidence Confidence `json:"model_confidence"`
	RulepackVersion string     `json:"rulepack_version"`
	Explanation     string     `json:"decision_explanation"`
}

// ToResponse converts an Assessment to its trimmed response.
func (a *Assessment) ToResponse() *AssessmentResponse {
	return &AssessmentResponse{
		ID:              a.ID,
		CaseID:          a.CaseID,
		RiskScore:       a.RiskScore,
		RiskLabel:       a.RiskLabel,
		Route:           a.Route,
		ModelConfidence: a.ModelConfidence,
		RulepackVersion: a.RulepackVersion,
		Explanation:     a.DecisionExplanation,
	}
}
