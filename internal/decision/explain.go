package decision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	maxExplanationReasons = 3
	fallbackPrimary       = "Multiple factors"
)

// TopReasons returns the reasons of the highest scoring dimensions, joined
// by "; ". Ties keep canonical dimension order.
func TopReasons(dims *domain.Dimensions, limit int) string {
	ordered := dims.Ordered()
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Result.Score > ordered[j].Result.Score
	})

	reasons := make([]string, 0, limit)
	for _, nd := range ordered {
		if len(reasons) == limit {
			break
		}
		if nd.Result.Reason != "" {
			reasons = append(reasons, nd.Result.Reason)
		}
	}
	if len(reasons) == 0 {
		return fallbackPrimary
	}
	return strings.Join(reasons, "; ")
}

// Explain builds the decision explanation sentence.
func Explain(dims *domain.Dimensions, label domain.Label, route domain.Route) string {
	return fmt.Sprintf("Overall %s risk. %s push the case to %s.", label, TopReasons(dims, maxExplanationReasons), route)
}
