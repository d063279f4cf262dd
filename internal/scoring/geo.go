package scoring

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Geo scores geographic exposure. A blacklisted payment country outranks a
// greylisted one; only the winning bonus is added.
func Geo(rp *domain.Rulepack, in *domain.CaseInput, rec *Recorder) domain.DimensionResult {
	rules := rp.Dimensions.Geo
	geo := in.RiskFeatures.Geo

	rawLabel := geo.Label
	if rawLabel == "" {
		rawLabel = string(domain.LabelLow)
		rec.Record(domain.DimensionGeo, "risk_features.geo.label", "", rawLabel)
	}
	score := tableScore(rules.BaseByLabel, rawLabel, unrecognizedLabelScore, rec, domain.DimensionGeo, "risk_features.geo.label")

	label, ok := domain.ParseLabel(rawLabel)
	if !ok {
		rec.Record(domain.DimensionGeo, "label", rawLabel, string(label))
	}

	reason := "Geo exposure aligns with declared residency and sources."
	if match, ok := anyIn(geo.PaymentCountries, rules.BlackList); ok {
		score += rules.BlackBonus
		reason = fmt.Sprintf("Payments involve FATF blacklisted jurisdiction (%s).", match)
	} else if match, ok := anyIn(geo.PaymentCountries, rules.GreyList); ok {
		score += rules.GreyBonus
		country := geo.CustomerCountry
		if country == "" {
			country = domain.HomeJurisdiction
			rec.Record(domain.DimensionGeo, "risk_features.geo.customer_country", "", country)
		}
		reason = fmt.Sprintf("Customer residency is %s (neutral), but remittance to FATF-greylisted jurisdiction noted (%s).", country, match)
	}

	return domain.DimensionResult{Score: score, Label: label, Reason: reason}
}
