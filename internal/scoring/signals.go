package scoring

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Signals are the boolean detectors shared by pattern risk, product/channel
// and the red-flag expressions.
type Signals struct {
	SalariedHighCash     bool
	RentalMismatch       bool
	DividendMissingProof bool
	CrossBorder          bool
	OffshoreHint         bool
}

// Detect computes the signals for a case.
func Detect(rp *domain.Rulepack, in *domain.CaseInput) Signals {
	geo := in.RiskFeatures.Geo
	return Signals{
		SalariedHighCash:     salariedHighCash(rp, in),
		RentalMismatch:       in.HasGapFor(domain.SourcePropertyHoldings, domain.SourceRentalIncome),
		DividendMissingProof: in.HasGapFor(domain.SourceDividend),
		CrossBorder:          crossBorder(geo.SourceCountries, geo.PaymentCountries),
		OffshoreHint:         offshoreHint(in.RiskFeatures.Product.Products, rp.Dimensions.ProductChannel.OffshoreKeywords),
	}
}

// PatternTag returns the case pattern tag, or Other when none is given.
func PatternTag(in *domain.CaseInput) string {
	if in.PatternTag == "" {
		return domain.PatternOther
	}
	return in.PatternTag
}

func salariedHighCash(rp *domain.Rulepack, in *domain.CaseInput) bool {
	return rp.Dimensions.PatternRisk.IsSalaryPattern(PatternTag(in)) &&
		in.RiskFeatures.Channel.CashIntensity == "high"
}

// crossBorder reports whether any source or payment country is outside the
// home jurisdiction.
func crossBorder(sourceCountries, paymentCountries []string) bool {
	for _, list := range [][]string{sourceCountries, paymentCountries} {
		for _, c := range list {
			if !domain.IsHomeJurisdiction(c) {
				return true
			}
		}
	}
	return false
}

// offshoreHint reports whether any keyword appears in the comma-joined
// product list, ignoring case.
func offshoreHint(products, keywords []string) bool {
	joined := strings.ToLower(strings.Join(products, ", "))
	for _, k := range keywords {
		if strings.Contains(joined, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// anyIn returns the first entry of targets, in list order, that appears in
// collection ignoring case. The entry is returned as written in targets.
func anyIn(collection, targets []string) (string, bool) {
	if len(collection) == 0 {
		return "", false
	}
	set := make(map[string]struct{}, len(collection))
	for _, c := range collection {
		set[strings.ToLower(c)] = struct{}{}
	}
	for _, t := range targets {
		if _, ok := set[strings.ToLower(t)]; ok {
			return t, true
		}
	}
	return "", false
}
