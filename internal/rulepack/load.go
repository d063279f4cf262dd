// Package rulepack loads, validates and serves the YAML rulepack that drives
// every scoring decision.
package rulepack

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	// UnknownVersion is reported when a rulepack carries no version string.
	UnknownVersion = "unknown"

	defaultAgent = "RiskAgent-UAE-v2.1"
	defaultMode  = "auto"

	maxAlignmentPointsKey = "max_alignment_points"
)

// DefaultSalaryPatterns are the pattern tags treated as salaried when the
// rulepack does not list its own.
var DefaultSalaryPatterns = []string{"WPS_Salary", "Salary_Plus_Property"}

// DefaultRedFlags are used when the rulepack has no red_flags section.
var DefaultRedFlags = []domain.RedFlagDefinition{
	{ID: "cash_unexplained", Label: "Cash deposits unexplained", When: "salaried_high_cash"},
	{ID: "rental_count_mismatch", Label: "Mismatch in rental property count", When: "rental_mismatch"},
	{ID: "cross_border_unevidenced", Label: "Cross-border investments without sufficient evidence", When: "cross_border"},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Snapshot is an immutable, fully validated rulepack together with its
// compiled red-flag programs. Evaluations hold one snapshot for their whole
// lifetime.
type Snapshot struct {
	Rulepack *domain.Rulepack
	RedFlags []*CompiledFlag
	Checksum string
	Source   string
	LoadedAt time.Time
}

// Version returns the rulepack version.
func (s *Snapshot) Version() string {
	return s.Rulepack.Version
}

// LoadFile reads and parses the rulepack at path.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Source: path, Err: err}
	}
	return Parse(data, path)
}

// Parse builds a snapshot from raw YAML. source is only used for error
// messages and reporting.
func Parse(data []byte, source string) (*Snapshot, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, &domain.ConfigError{Source: source, Err: fmt.Errorf("parse yaml: %w", err)}
	}

	if err := validate.Struct(&doc); err != nil {
		return nil, validationError(source, err)
	}

	rp, err := build(doc.Rulepack)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = source
		}
		return nil, err
	}

	flags, err := compileFlags(rp.RedFlags)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = source
		}
		return nil, err
	}

	sum := sha256.Sum256(data)
	return &Snapshot{
		Rulepack: rp,
		RedFlags: flags,
		Checksum: hex.EncodeToString(sum[:]),
		Source:   source,
		LoadedAt: time.Now().UTC(),
	}, nil
}

// validationError reports the first failing field by its YAML path.
func validationError(source string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ConfigError{Source: source, Err: err}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "oneof":
		msg = fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		msg = fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		msg = fmt.Sprintf("must be <= %s", fe.Param())
	default:
		msg = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return &domain.ConfigError{Source: source, Field: field, Err: errors.New(msg)}
}

func fieldError(field, format string, args ...any) error {
	return &domain.ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// build converts a validated document into the typed rulepack and applies
// the cross-field rules the struct tags cannot express.
func build(raw *rawRulepack) (*domain.Rulepack, error) {
	rp := &domain.Rulepack{
		Version:    raw.Version,
		PolicyRefs: raw.PolicyRefs,
		Assessor:   domain.AssessorConfig{Agent: defaultAgent, Mode: defaultMode},
	}
	if rp.Version == "" {
		rp.Version = UnknownVersion
	}
	if rp.PolicyRefs == nil {
		rp.PolicyRefs = []string{}
	}
	if raw.Assessor != nil {
		if raw.Assessor.Agent != "" {
			rp.Assessor.Agent = raw.Assessor.Agent
		}
		if raw.Assessor.Mode != "" {
			rp.Assessor.Mode = raw.Assessor.Mode
		}
	}

	th := raw.Thresholds
	if *th.Bands.High < *th.Bands.Medium {
		return nil, fieldError("rulepack.thresholds.bands", "high (%v) must not be below medium (%v)", *th.Bands.High, *th.Bands.Medium)
	}
	rp.Thresholds = domain.Thresholds{
		SufficiencyMinDefault: *th.SufficiencyMinDefault,
		EDDCutoffScoreDefault: *th.EDDCutoffScoreDefault,
		Bands:                 domain.Bands{High: *th.Bands.High, Medium: *th.Bands.Medium},
	}

	dims := raw.Dimensions

	fatf := dims.Geo.Modifiers.FATFExposure
	rp.Dimensions.Geo = domain.GeoRules{
		BaseByLabel: dims.Geo.ScoreMap.Base,
		GreyList:    fatf.List.Grey,
		BlackList:   fatf.List.Black,
		GreyBonus:   *fatf.AddIfIn.Grey,
		BlackBonus:  *fatf.AddIfIn.Black,
	}

	tiers, err := buildTiers(dims.PEPSanctions.Rules)
	if err != nil {
		return nil, err
	}
	rp.Dimensions.PEPSanctions = domain.PEPSanctionsRules{Tiers: tiers}

	severityLabels := make(map[string]domain.Label, len(dims.AdverseMedia.Mapping.SeverityToLabel))
	for sev, l := range dims.AdverseMedia.Mapping.SeverityToLabel {
		severityLabels[sev] = domain.Label(l)
	}
	rp.Dimensions.AdverseMedia = domain.AdverseMediaRules{
		SeverityToScore: dims.AdverseMedia.Mapping.SeverityToScore,
		SeverityToLabel: severityLabels,
	}

	pr := dims.PatternRisk
	if _, ok := pr.BaseByPattern[domain.PatternOther]; !ok {
		return nil, fieldError("rulepack.dimensions.pattern_risk.base_by_pattern", "missing required %q entry", domain.PatternOther)
	}
	salary := pr.SalaryPatterns
	if len(salary) == 0 {
		salary = append([]string(nil), DefaultSalaryPatterns...)
	}
	rp.Dimensions.PatternRisk = domain.PatternRiskRules{
		BaseByPattern:        pr.BaseByPattern,
		SalaryPatterns:       salary,
		SalariedHighCash:     *pr.InconsistencyModifiers.SalariedHighCash,
		RentalCountMismatch:  *pr.InconsistencyModifiers.RentalCountMismatch,
		DividendMissingProof: *pr.InconsistencyModifiers.DividendMissingProof,
	}

	gs := dims.EvidenceGaps.Scoring
	maxAlign, ok := gs.PartialAlignmentPoints[maxAlignmentPointsKey]
	if !ok {
		return nil, fieldError("rulepack.dimensions.evidence_gaps.scoring.partial_alignment_points", "missing required %q entry", maxAlignmentPointsKey)
	}
	alignment := make(map[domain.Alignment]int, len(gs.PartialAlignmentPoints))
	for k, v := range gs.PartialAlignmentPoints {
		if k == maxAlignmentPointsKey {
			continue
		}
		alignment[domain.Alignment(k)] = v
	}
	rp.Dimensions.EvidenceGaps = domain.EvidenceGapRules{
		BaseWhenLow:        *gs.BaseFromSufficiency.WhenLow,
		BaseWhenOK:         *gs.BaseFromSufficiency.WhenOK,
		PerIssuePoints:     gs.PerIssuePoints,
		MaxIssuePoints:     *gs.MaxIssuePoints,
		AlignmentPoints:    alignment,
		MaxAlignmentPoints: maxAlign,
	}

	pc := dims.ProductChannel
	rp.Dimensions.ProductChannel = domain.ProductChannelRules{
		BaseByLabel:      pc.BaseByLabel,
		ChannelAdders:    pc.ChannelAdders,
		NonHomeFlow:      *pc.CrossBorderAdders.NonUAEFlow,
		OffshoreHint:     *pc.CrossBorderAdders.OffshoreInvestmentHint,
		OffshoreKeywords: pc.OffshoreKeywords,
	}

	if raw.RedFlags == nil {
		rp.RedFlags = append([]domain.RedFlagDefinition(nil), DefaultRedFlags...)
	} else {
		seen := make(map[string]bool, len(raw.RedFlags))
		rp.RedFlags = make([]domain.RedFlagDefinition, 0, len(raw.RedFlags))
		for i, rf := range raw.RedFlags {
			if seen[rf.ID] {
				return nil, fieldError(fmt.Sprintf("rulepack.red_flags[%d].id", i), "duplicate red flag id %q", rf.ID)
			}
			seen[rf.ID] = true
			rp.RedFlags = append(rp.RedFlags, domain.RedFlagDefinition{ID: rf.ID, Label: rf.Label, When: rf.When})
		}
	}

	return rp, nil
}

// buildTiers keys the PEP/sanctions rules by status. The first rule for a
// status wins and all three statuses must be present.
func buildTiers(rules []rawTier) (map[domain.ScreeningStatus]domain.ScreeningTier, error) {
	tiers := make(map[domain.ScreeningStatus]domain.ScreeningTier, 3)
	for _, r := range rules {
		status := domain.ScreeningStatus(r.When)
		if _, dup := tiers[status]; dup {
			continue
		}
		tier := domain.ScreeningTier{
			Score:  *r.Score,
			Label:  domain.Label(r.Label),
			Reason: r.Reason,
		}
		if r.HardRoute != "" {
			route := domain.Route(r.HardRoute)
			tier.HardRoute = &route
		}
		tiers[status] = tier
	}
	for _, status := range []domain.ScreeningStatus{domain.StatusMatch, domain.StatusPossible, domain.StatusClear} {
		if _, ok := tiers[status]; !ok {
			return nil, &domain.ConfigError{
				Field: "rulepack.dimensions.pep_sanctions.rules",
				Err:   fmt.Errorf("%w: no rule for %q", domain.ErrTierUndefined, status),
			}
		}
	}
	return tiers, nil
}

// MustLoadFile is like LoadFile but panics on error. It is meant for tests
// and fixed built-in fixtures.
func MustLoadFile(path string) *Snapshot {
	snap, err := LoadFile(path)
	if err != nil {
		panic(err)
	}
	return snap
}
