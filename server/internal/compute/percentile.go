package compute

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0–100) of values using linear
// interpolation between the two closest ranks:
//
//	k  = (n-1) * p/100
//	lo = floor(k), hi = ceil(k)
//	v  = sorted[lo]                                  if lo == hi
//	v  = sorted[lo]*(hi-k) + sorted[hi]*(k-lo)       otherwise
//
// p is clamped to [0, 100]. values is not modified. The second return value
// is false when values is empty.
func Percentile(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	k := float64(len(sorted)-1) * (p / 100)
	lo := math.Floor(k)
	hi := math.Ceil(k)
	if lo == hi {
		return sorted[int(lo)], true
	}
	return sorted[int(lo)]*(hi-k) + sorted[int(hi)]*(k-lo), true
}
