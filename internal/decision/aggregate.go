package decision

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Band maps a total score onto the rulepack bands. Both bounds are inclusive
// lower limits.
func Band(total int, bands domain.Bands) domain.Label {
	score := float64(total)
	switch {
	case score >= bands.High:
		return domain.LabelHigh
	case score >= bands.Medium:
		return domain.LabelMedium
	default:
		return domain.LabelLow
	}
}

// Route picks the escalation path. Rules are checked in order and the first
// that fires wins: a dimension hard route, insufficient evidence, then the
// score cutoff.
func Route(dims *domain.Dimensions, in *domain.CaseInput, eff domain.EffectiveThresholds, total int) (domain.Route, domain.RouteReason) {
	if route, ok := dims.HardRouted(); ok && route == domain.RouteEDD {
		return domain.RouteEDD, domain.RouteReasonHardRoute
	}
	if in.BelowSufficiency(eff) {
		return domain.RouteEDD, domain.RouteReasonInsufficient
	}
	if float64(total) >= eff.EDDCutoffScore {
		return domain.RouteEDD, domain.RouteReasonScoreCutoff
	}
	return domain.RouteBaseline, domain.RouteReasonBaseline
}
