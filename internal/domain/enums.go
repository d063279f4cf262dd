package domain

import "strings"

// Label is a risk severity band.
type Label string

const (
	LabelLow    Label = "low"
	LabelMedium Label = "medium"
	LabelHigh   Label = "high"
)

// ParseLabel maps free text onto a Label. Unknown values fall back to low.
func ParseLabel(s string) (Label, bool) {
	switch Label(s) {
	case LabelLow, LabelMedium, LabelHigh:
		return Label(s), true
	default:
		return LabelLow, false
	}
}

// Rank orders labels by severity so callers can compare them.
func (l Label) Rank() int {
	switch l {
	case LabelHigh:
		return 2
	case LabelMedium:
		return 1
	default:
		return 0
	}
}

// Route is the escalation path picked for a case.
type Route string

const (
	RouteBaseline Route = "Baseline"
	RouteEDD      Route = "EDD"
)

// RouteReason records which routing rule fired.
type RouteReason string

const (
	RouteReasonHardRoute    RouteReason = "hard_route"
	RouteReasonInsufficient RouteReason = "insufficient_evidence"
	RouteReasonScoreCutoff  RouteReason = "score_cutoff"
	RouteReasonBaseline     RouteReason = "baseline"
)

// ScreeningStatus is the pre-computed outcome of a sanctions or PEP lookup.
type ScreeningStatus string

const (
	StatusMatch    ScreeningStatus = "match"
	StatusPossible ScreeningStatus = "possible"
	StatusClear    ScreeningStatus = "clear"
)

// Normalize returns the status, treating anything unrecognised as clear.
func (s ScreeningStatus) Normalize() ScreeningStatus {
	switch s {
	case StatusMatch, StatusPossible:
		return s
	default:
		return StatusClear
	}
}

// SeverityNone is the adverse media severity that carries no hits.
const SeverityNone = "none"

// Alignment grades a declared-vs-discovered comparison.
type Alignment string

const (
	AlignmentAligned  Alignment = "aligned"
	AlignmentPartial  Alignment = "partial"
	AlignmentMismatch Alignment = "mismatch"
	AlignmentMissing  Alignment = "missing"
)

// Known reports whether a is one of the defined grades. Unknown grades
// score zero points.
func (a Alignment) Known() bool {
	switch a {
	case AlignmentAligned, AlignmentPartial, AlignmentMismatch, AlignmentMissing:
		return true
	default:
		return false
	}
}

// IsGap reports whether the alignment leaves the declared source unproven.
func (a Alignment) IsGap() bool {
	switch a {
	case AlignmentPartial, AlignmentMismatch, AlignmentMissing:
		return true
	default:
		return false
	}
}

// PatternOther is the pattern tag used when a case carries none, and the
// fallback row in the pattern base table.
const PatternOther = "Other"

// Source types inspected by the pattern and evidence-gap evaluators.
const (
	SourcePropertyHoldings = "Property Holdings"
	SourceRentalIncome     = "Rental Income"
	SourceDividend         = "Dividend"
)

// IssueMissingEvidence is the issue type that flags absent documentary proof.
const IssueMissingEvidence = "MISSING_EVIDENCE"

// HomeJurisdiction is the jurisdiction whose flows are not cross-border.
const HomeJurisdiction = "UAE"

// IsHomeJurisdiction compares a country against HomeJurisdiction, ignoring case.
func IsHomeJurisdiction(country string) bool {
	return strings.EqualFold(country, HomeJurisdiction)
}
