package crossmarket

import "math"

// CorrelationFunc resolves the Open Question in spec §9 about the exact
// same-event correlation rule: given the leader's and a candidate sibling's
// recent return series, report whether the pair should be treated as
// correlated for propagation purposes. The default, sibling-of-same-event
// rule (spec §4.5) never needs this — siblings of the same event are
// mutually exclusive by construction — so a nil CorrelationFunc is treated
// as "always correlated". PearsonCorrelation is provided as an optional,
// not-defaulted-to alternative for same-series-different-event use.
type CorrelationFunc func(leaderReturns, siblingReturns []float64) bool

// PearsonCorrelation returns a CorrelationFunc that requires the Pearson
// correlation coefficient between the two return series to exceed
// threshold in absolute value, with at least minSamples overlapping
// points. Adapted from the teacher's computePearsonCorrelation.
func PearsonCorrelation(threshold float64, minSamples int) CorrelationFunc {
	return func(x, y []float64) bool {
		n := len(x)
		if len(y) < n {
			n = len(y)
		}
		if n < minSamples {
			return false
		}

		var sumX, sumY, sumXY, sumX2, sumY2 float64
		for i := 0; i < n; i++ {
			sumX += x[i]
			sumY += y[i]
			sumXY += x[i] * y[i]
			sumX2 += x[i] * x[i]
			sumY2 += y[i] * y[i]
		}

		numerator := float64(n)*sumXY - sumX*sumY
		denominator := math.Sqrt((float64(n)*sumX2 - sumX*sumX) * (float64(n)*sumY2 - sumY*sumY))
		if denominator == 0 {
			return false
		}

		corr := numerator / denominator
		if math.IsNaN(corr) {
			return false
		}
		return math.Abs(corr) >= threshold
	}
}
