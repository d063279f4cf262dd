package decision

import (
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rulepack"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// FlagInputs assembles the red-flag variables for an evaluated case.
func FlagInputs(rp *domain.Rulepack, in *domain.CaseInput, total int, label domain.Label, route domain.Route) rulepack.FlagInputs {
	sig := scoring.Detect(rp, in)
	return rulepack.FlagInputs{
		SalariedHighCash:     sig.SalariedHighCash,
		RentalMismatch:       sig.RentalMismatch,
		DividendMissingProof: sig.DividendMissingProof,
		CrossBorder:          sig.CrossBorder,
		OffshoreHint:         sig.OffshoreHint,
		SanctionsStatus:      string(scoring.ScreeningStatus(in.Screening.Sanctions)),
		PEPStatus:            string(scoring.ScreeningStatus(in.Screening.PEP)),
		AdverseMediaSeverity: scoring.MediaSeverity(in),
		PatternTag:           scoring.PatternTag(in),
		Route:                string(route),
		RiskLabel:            string(label),
		RiskScore:            total,
		SufficiencyAfterHITL: in.Sufficiency(),
	}
}

// RedFlags evaluates the compiled flags in rulepack order and returns the
// labels of those that fire. The result is never nil.
func RedFlags(flags []*rulepack.CompiledFlag, inputs rulepack.FlagInputs) ([]string, error) {
	fired := make([]string, 0, len(flags))
	if len(flags) == 0 {
		return fired, nil
	}
	activation := inputs.Activation()
	for _, f := range flags {
		ok, err := f.Eval(activation)
		if err != nil {
			return nil, err
		}
		if ok {
			fired = append(fired, f.Def.Label)
		}
	}
	return fired, nil
}
