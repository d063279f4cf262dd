package scoring

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// PEPSanctions picks the most severe screening tier across the sanctions and
// PEP statuses (match > possible > clear) and returns that tier verbatim.
// A tier the rulepack does not define is an error, never a silent default.
func PEPSanctions(rp *domain.Rulepack, in *domain.CaseInput, rec *Recorder) (domain.DimensionResult, error) {
	sanctions := screeningStatus(in.Screening.Sanctions, "screening_summary.sanctions.status", rec)
	pep := screeningStatus(in.Screening.PEP, "screening_summary.pep.status", rec)

	status := domain.StatusClear
	switch {
	case sanctions == domain.StatusMatch || pep == domain.StatusMatch:
		status = domain.StatusMatch
	case sanctions == domain.StatusPossible || pep == domain.StatusPossible:
		status = domain.StatusPossible
	}

	tier, ok := rp.Dimensions.PEPSanctions.Tiers[status]
	if !ok {
		return domain.DimensionResult{}, fmt.Errorf("%w: %q", domain.ErrTierUndefined, status)
	}

	res := domain.DimensionResult{
		Score:  tier.Score,
		Label:  tier.Label,
		Reason: tier.Reason,
	}
	if tier.HardRoute != nil && *tier.HardRoute == domain.RouteEDD {
		route := domain.RouteEDD
		res.HardRoute = &route
	}
	return res, nil
}

// ScreeningStatus returns the normalized status of a screening check.
func ScreeningStatus(check *domain.StatusCheck) domain.ScreeningStatus {
	if check == nil {
		return domain.StatusClear
	}
	return check.Status.Normalize()
}

func screeningStatus(check *domain.StatusCheck, field string, rec *Recorder) domain.ScreeningStatus {
	status := ScreeningStatus(check)
	switch {
	case check == nil || check.Status == "":
		rec.Record(domain.DimensionPEPSanctions, field, "", string(status))
	case check.Status != status:
		rec.Record(domain.DimensionPEPSanctions, field, string(check.Status), string(status))
	}
	return status
}
