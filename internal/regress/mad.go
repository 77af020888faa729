// Package regress implements the robust change-rate regression engine:
// MAD outlier detection, outlier-excluded least squares, and the all-time
// summary statistics derived from each point's movement series.
package regress

import (
	"math"
	"sort"
)

// madScale converts a median absolute deviation to a consistent estimate
// of the standard deviation (Iglewicz & Hoaglin modified z-score).
const madScale = 0.6745

// MADOutliers flags observations whose modified z-score exceeds thresh.
// Observations are median-centered jointly in (x, y); pass a nil xs for
// one-dimensional screening. A zero MAD gives an infinite z-score for any
// nonzero deviation, so those observations are flagged.
func MADOutliers(xs, ys []float64, thresh float64) []bool {
	n := len(ys)
	out := make([]bool, n)
	if n == 0 {
		return out
	}

	medY := median(ys)
	var medX float64
	if xs != nil {
		medX = median(xs)
	}

	diffs := make([]float64, n)
	for i := range ys {
		dy := ys[i] - medY
		if xs != nil {
			dx := xs[i] - medX
			diffs[i] = math.Hypot(dx, dy)
		} else {
			diffs[i] = math.Abs(dy)
		}
	}

	mad := median(diffs)
	if mad == 0 {
		for i, d := range diffs {
			out[i] = d > 0
		}
		return out
	}
	for i, d := range diffs {
		out[i] = madScale*d/mad > thresh
	}
	return out
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
