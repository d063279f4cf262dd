package scoring

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// ProductChannel scores product risk, onboarding channel and cross-border
// usage.
func ProductChannel(rp *domain.Rulepack, in *domain.CaseInput, rec *Recorder) domain.DimensionResult {
	rules := rp.Dimensions.ProductChannel
	features := in.RiskFeatures

	label := features.Product.Label
	if label == "" {
		label = string(domain.LabelLow)
		rec.Record(domain.DimensionProductChannel, "risk_features.product.label", "", label)
	}
	score := tableScore(rules.BaseByLabel, label, unrecognizedLabelScore, rec, domain.DimensionProductChannel, "risk_features.product.label")

	channel := features.Channel.OnboardingChannel
	if channel == "" {
		channel = "branch"
		rec.Record(domain.DimensionProductChannel, "risk_features.channel.onboarding_channel", "", channel)
	}
	score += tableScore(rules.ChannelAdders, channel, 0, rec, domain.DimensionProductChannel, "channel_adders")

	isCrossBorder := crossBorder(features.Geo.SourceCountries, features.Geo.PaymentCountries)
	offshore := offshoreHint(features.Product.Products, rules.OffshoreKeywords)
	if isCrossBorder {
		score += rules.NonHomeFlow
	}
	if offshore {
		score += rules.OffshoreHint
	}

	var reason string
	switch {
	case offshore:
		reason = "Use of offshore investment platform detected; cross-border complexity."
	case isCrossBorder:
		reason = "Cross-border product/channel usage detected."
	default:
		reason = "Product/channel risk per profile."
	}

	return domain.DimensionResult{
		Score:  score,
		Label:  labelFor(score, productLowMax, productMediumMax),
		Reason: reason,
	}
}
