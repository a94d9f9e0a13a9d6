package aggregator

import "math"

// percentile computes the p-th percentile of an ascending-sorted list using
// the linear-interpolation rank method: for N values the index is
// p/100 * (N-1), interpolating between adjacent values when fractional.
// Callers guarantee a non-empty list.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	idx := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
