package scoring

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// AdverseMedia maps the screening severity onto the rulepack tables.
func AdverseMedia(rp *domain.Rulepack, in *domain.CaseInput, rec *Recorder) domain.DimensionResult {
	rules := rp.Dimensions.AdverseMedia
	severity, hits := MediaSeverity(in), 0
	if in.Screening.AdverseMedia == nil || in.Screening.AdverseMedia.Severity == "" {
		rec.Record(domain.DimensionAdverseMedia, "screening_summary.adverse_media.severity", "", severity)
	}
	if in.Screening.AdverseMedia != nil {
		hits = in.Screening.AdverseMedia.Hits
	}

	score := tableScore(rules.SeverityToScore, severity, 0, rec, domain.DimensionAdverseMedia, "severity_to_score")

	label, ok := rules.SeverityToLabel[severity]
	if !ok {
		label = domain.LabelLow
		rec.Record(domain.DimensionAdverseMedia, "severity_to_label", severity, string(label))
	}

	reason := "No negative media hits in top-tier news sources."
	if severity != domain.SeverityNone {
		reason = fmt.Sprintf("Adverse media severity %s (%d hits).", severity, hits)
	}

	return domain.DimensionResult{Score: score, Label: label, Reason: reason}
}

// MediaSeverity returns the adverse media severity, or none when absent.
func MediaSeverity(in *domain.CaseInput) string {
	if in.Screening.AdverseMedia == nil || in.Screening.AdverseMedia.Severity == "" {
		return domain.SeverityNone
	}
	return in.Screening.AdverseMedia.Severity
}
