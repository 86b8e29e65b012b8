package sim

import (
	"cmp"
	"math"
)

// ValidScore reports whether x can take part in score ordering.
func ValidScore(x float64) bool {
	return !math.IsNaN(x)
}

// CompareScores is the total order used wherever scores are sorted or keyed.
// NaN is rejected upstream; cmp.Compare still orders it first if one leaks.
func CompareScores(a, b float64) int {
	return cmp.Compare(a, b)
}

// CostOrInf maps a score to a minimization cost, sending NaN to +Inf so
// numerically broken evaluations lose every comparison.
func CostOrInf(score float64) float64 {
	if !ValidScore(score) {
		return math.Inf(1)
	}
	return -score
}
