package regress

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/coastline-cli/internal/model"
)

// AllTimeStats computes the envelope and net-movement summary for one
// point's distance series, restricted to years at or after initialYear
// and excluding the years named in outliers (the time regression's
// excluded-label string).
//
// NSM is the movement between the oldest and the most recent valid
// shoreline. Distances are measured from the baseline (most recent,
// defined as zero), so NSM reduces to the negated oldest distance: a
// shoreline 50 units landward of the baseline in the oldest year means
// the coast advanced 50 units since.
func AllTimeStats(dists map[int]float64, outliers string, initialYear int) model.PointStats {
	excluded := make(map[int]bool)
	for _, f := range strings.Fields(outliers) {
		if y, err := strconv.Atoi(f); err == nil {
			excluded[y] = true
		}
	}

	var years []int
	for y, d := range dists {
		if y < initialYear || excluded[y] || math.IsNaN(d) {
			continue
		}
		years = append(years, y)
	}
	if len(years) == 0 {
		nan := math.NaN()
		return model.PointStats{SCE: nan, NSM: nan}
	}
	sort.Ints(years)

	first, last := years[0], years[len(years)-1]
	maxYear, minYear := first, first
	maxD, minD := dists[first], dists[first]
	for _, y := range years {
		d := dists[y]
		if d > maxD {
			maxD, maxYear = d, y
		}
		if d < minD {
			minD, minYear = d, y
		}
	}

	return model.PointStats{
		ValidObs:  len(years),
		ValidSpan: last - first + 1,
		SCE:       round2(maxD - minD),
		NSM:       round2(-dists[first]),
		MaxYear:   maxYear,
		MinYear:   minYear,
	}
}

// Detrend removes the linear time trend from a climate-index series,
// returning a new series of residuals.
func Detrend(series model.ClimateSeries) model.ClimateSeries {
	var xs, ys []float64
	var years []int
	for y := range series {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		xs = append(xs, float64(y))
		ys = append(ys, series[y])
	}

	fit := Linregress(xs, ys)
	if math.IsNaN(fit.Slope) {
		out := make(model.ClimateSeries, len(series))
		for y, v := range series {
			out[y] = v
		}
		return out
	}

	out := make(model.ClimateSeries, len(series))
	for y, v := range series {
		out[y] = v - (fit.Slope*float64(y) + fit.Intercept)
	}
	return out
}

func round2(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*100) / 100
}
