// Package scoring implements the six dimension evaluators. Each evaluator is
// a pure function of the rulepack and the case; missing inputs fall back to
// fixed defaults and every fallback is reported to a Recorder.
package scoring

import (
	"strconv"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Label breakpoints for dimensions whose label is derived from the score.
// Scores up to and including lowMax are low, up to mediumMax medium.
const (
	patternLowMax    = 9
	patternMediumMax = 19

	gapLowMax    = 7
	gapMediumMax = 15

	productLowMax    = 7
	productMediumMax = 14
)

// unrecognizedLabelScore is the base used by the geo and product tables when
// the case label has no row.
const unrecognizedLabelScore = 5

// Recorder collects the defaults substituted during one evaluation. A nil
// Recorder discards everything.
type Recorder struct {
	applied []domain.DefaultApplied
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record notes that field of dimension fell back to def. value is the
// offending input, empty when the field was absent.
func (r *Recorder) Record(dimension, field, value, def string) {
	if r == nil {
		return
	}
	r.applied = append(r.applied, domain.DefaultApplied{
		Dimension: dimension,
		Field:     field,
		Value:     value,
		Default:   def,
	})
}

// Applied returns the recorded defaults in the order they were applied.
func (r *Recorder) Applied() []domain.DefaultApplied {
	if r == nil {
		return nil
	}
	return r.applied
}

// Evaluate runs all six evaluators in canonical order.
func Evaluate(rp *domain.Rulepack, in *domain.CaseInput, eff domain.EffectiveThresholds, rec *Recorder) (domain.Dimensions, error) {
	pep, err := PEPSanctions(rp, in, rec)
	if err != nil {
		return domain.Dimensions{}, err
	}
	return domain.Dimensions{
		Geo:            Geo(rp, in, rec),
		PEPSanctions:   pep,
		AdverseMedia:   AdverseMedia(rp, in, rec),
		PatternRisk:    PatternRisk(rp, in, rec),
		EvidenceGaps:   EvidenceGaps(rp, in, eff, rec),
		ProductChannel: ProductChannel(rp, in, rec),
	}, nil
}

func labelFor(score, lowMax, mediumMax int) domain.Label {
	switch {
	case score <= lowMax:
		return domain.LabelLow
	case score <= mediumMax:
		return domain.LabelMedium
	default:
		return domain.LabelHigh
	}
}

// tableScore looks key up in table, recording and returning fallback when it
// has no row.
func tableScore(table map[string]int, key string, fallback int, rec *Recorder, dimension, field string) int {
	if score, ok := table[key]; ok {
		return score
	}
	rec.Record(dimension, field, key, strconv.Itoa(fallback))
	return fallback
}
