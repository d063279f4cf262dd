package scoring

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// EvidenceGaps scores what remains unproven after human review: a base from
// sufficiency, capped issue points and capped alignment points.
func EvidenceGaps(rp *domain.Rulepack, in *domain.CaseInput, eff domain.EffectiveThresholds, rec *Recorder) domain.DimensionResult {
	rules := rp.Dimensions.EvidenceGaps

	if in.SufficiencyAfterHITL == nil {
		rec.Record(domain.DimensionEvidenceGaps, "sufficiency_after_hitl", "", "0")
	}
	low := in.BelowSufficiency(eff)

	base := rules.BaseWhenOK
	if low {
		base = rules.BaseWhenLow
	}

	issuePoints := 0
	for _, issue := range in.Issues {
		impact := issue.ResidualImpact
		if impact == "" {
			impact = domain.SeverityNone
			rec.Record(domain.DimensionEvidenceGaps, "issues.residual_impact", "", impact)
		}
		issuePoints += tableScore(rules.PerIssuePoints, impact, 0, rec, domain.DimensionEvidenceGaps, "issues.residual_impact")
	}
	issuePoints = min(issuePoints, rules.MaxIssuePoints)

	alignmentPoints := 0
	for _, item := range in.DeclaredVsDiscovered {
		alignment := item.Alignment
		if alignment == "" {
			alignment = domain.AlignmentAligned
			rec.Record(domain.DimensionEvidenceGaps, "declared_vs_discovered.alignment", "", string(alignment))
		}
		if !alignment.Known() {
			rec.Record(domain.DimensionEvidenceGaps, "declared_vs_discovered.alignment", string(alignment), "0")
			continue
		}
		alignmentPoints += rules.AlignmentPoints[alignment]
		if alignmentPoints >= rules.MaxAlignmentPoints {
			alignmentPoints = rules.MaxAlignmentPoints
			break
		}
	}

	score := base + issuePoints + alignmentPoints

	var reasons []string
	if low {
		reasons = append(reasons, "Evidence sufficiency below policy threshold.")
	}
	if hasMissingEvidence(in.Issues) {
		reasons = append(reasons, "Missing documentary proof for one or more declared sources.")
	}
	if in.HasGapFor(domain.SourcePropertyHoldings, domain.SourceDividend) {
		reasons = append(reasons, "Declared properties/dividends not fully evidenced.")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Residual gaps assessed post-HITL.")
	}

	return domain.DimensionResult{
		Score:  score,
		Label:  labelFor(score, gapLowMax, gapMediumMax),
		Reason: strings.Join(reasons, "; "),
	}
}

func hasMissingEvidence(issues []domain.Issue) bool {
	for _, issue := range issues {
		if issue.Type == domain.IssueMissingEvidence {
			return true
		}
	}
	return false
}
