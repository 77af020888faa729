package regress

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/coastline-cli/internal/model"
)

// DefaultMADThreshold is the modified z-score above which an observation
// is excluded from the regression.
const DefaultMADThreshold = 3.5

// ChangeOptions configures one robust fit.
type ChangeOptions struct {
	// Threshold overrides the MAD threshold; zero means the default.
	Threshold float64
	// Detrend, when non-nil, supplies (slope, intercept) of a prior time
	// regression; the trend, evaluated at each row's label (the year), is
	// subtracted from the dependent variable before fitting so the fit
	// isolates residual variance.
	Detrend *[2]float64
}

// ChangeRegress fits a robust linear trend of ys against xs. Rows with a
// missing value on either axis are dropped, MAD outliers excluded, and the
// remainder fitted by ordinary least squares. labels names each row (in
// practice the years) and must be the same length as ys; excluded labels
// are reported sorted and whitespace-joined. Fewer than two surviving
// rows yields a NaN-valued result naming every label — never an error.
func ChangeRegress(ys, xs []float64, labels []int, opts ChangeOptions) model.RegressionResult {
	thresh := opts.Threshold
	if thresh == 0 {
		thresh = DefaultMADThreshold
	}

	var fx, fy []float64
	var flabels []int
	for i := range ys {
		if math.IsNaN(ys[i]) || math.IsNaN(xs[i]) {
			continue
		}
		y := ys[i]
		if opts.Detrend != nil {
			y -= opts.Detrend[0]*float64(labels[i]) + opts.Detrend[1]
		}
		fx = append(fx, xs[i])
		fy = append(fy, y)
		flabels = append(flabels, labels[i])
	}

	outlier := MADOutliers(fx, fy, thresh)
	var rx, ry []float64
	kept := make(map[int]bool, len(flabels))
	for i := range fx {
		if outlier[i] {
			continue
		}
		rx = append(rx, fx[i])
		ry = append(ry, fy[i])
		kept[flabels[i]] = true
	}

	excluded := excludedLabels(labels, kept)

	if len(rx) < 2 {
		nan := math.NaN()
		return model.RegressionResult{Slope: nan, Intercept: nan, PValue: nan, StdErr: nan, Outliers: excluded}
	}

	fit := Linregress(rx, ry)
	return model.RegressionResult{
		Slope:     round3(fit.Slope),
		Intercept: round3(fit.Intercept),
		PValue:    round3(fit.PValue),
		StdErr:    round3(fit.StdErr),
		Outliers:  excluded,
	}
}

// excludedLabels returns the sorted, space-joined labels absent from kept.
func excludedLabels(labels []int, kept map[int]bool) string {
	var dropped []int
	seen := make(map[int]bool, len(labels))
	for _, l := range labels {
		if !kept[l] && !seen[l] {
			dropped = append(dropped, l)
			seen[l] = true
		}
	}
	sort.Ints(dropped)
	parts := make([]string, len(dropped))
	for i, l := range dropped {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, " ")
}

func round3(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*1000) / 1000
}
