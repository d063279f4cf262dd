package scoring

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// PatternRisk scores the wealth pattern and adds the inconsistency modifiers
// that fire for it. Modifiers are additive and not exclusive.
func PatternRisk(rp *domain.Rulepack, in *domain.CaseInput, rec *Recorder) domain.DimensionResult {
	rules := rp.Dimensions.PatternRisk

	tag := PatternTag(in)
	if in.PatternTag == "" {
		rec.Record(domain.DimensionPatternRisk, "pattern_tag", "", tag)
	}

	score, ok := rules.BaseByPattern[tag]
	if !ok {
		score = rules.BaseByPattern[domain.PatternOther]
		rec.Record(domain.DimensionPatternRisk, "base_by_pattern", tag, domain.PatternOther)
	}

	var reasons []string
	if salariedHighCash(rp, in) {
		score += rules.SalariedHighCash
		reasons = append(reasons, "Large cash deposits inconsistent with declared salaried profile. Potential layering risk.")
	}
	if in.HasGapFor(domain.SourcePropertyHoldings, domain.SourceRentalIncome) {
		score += rules.RentalCountMismatch
		reasons = append(reasons, "Mismatch in declared vs discovered rental properties.")
	}
	if in.HasGapFor(domain.SourceDividend) {
		score += rules.DividendMissingProof
		reasons = append(reasons, "Dividend income declared without sufficient proof.")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, fmt.Sprintf("Pattern risk evaluated for %s.", tag))
	}

	return domain.DimensionResult{
		Score:  score,
		Label:  labelFor(score, patternLowMax, patternMediumMax),
		Reason: strings.Join(reasons, "; "),
	}
}
