package decision

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Confidence is the mean evidence confidence scaled by post-review
// sufficiency, clamped to [0,1]. A case with no evidence scores 0.
func Confidence(in *domain.CaseInput) domain.Confidence {
	if len(in.EvidenceSources) == 0 {
		return 0
	}
	sum := 0.0
	for _, src := range in.EvidenceSources {
		sum += src.Confidence
	}
	mean := sum / float64(len(in.EvidenceSources))
	return domain.Confidence(clamp(mean*(0.8+0.2*in.Sufficiency()), 0, 1))
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
