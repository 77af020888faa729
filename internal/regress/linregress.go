package regress

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LinFit holds an ordinary least-squares fit with its significance.
type LinFit struct {
	Slope     float64
	Intercept float64
	PValue    float64
	StdErr    float64
}

// Linregress fits y = slope*x + intercept by ordinary least squares and
// derives the two-sided p-value and standard error of the slope from a
// Student's t test, matching the usual scientific-stack conventions.
// Fewer than two observations yields an all-NaN fit.
func Linregress(x, y []float64) LinFit {
	n := len(x)
	if n < 2 || len(y) != n {
		nan := math.NaN()
		return LinFit{Slope: nan, Intercept: nan, PValue: nan, StdErr: nan}
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)

	if n == 2 {
		// A two-point fit is exact: no residual degrees of freedom.
		return LinFit{Slope: slope, Intercept: intercept, PValue: math.NaN(), StdErr: 0}
	}

	meanX := stat.Mean(x, nil)
	var ssRes, ssX float64
	for i := range x {
		r := y[i] - (slope*x[i] + intercept)
		ssRes += r * r
		dx := x[i] - meanX
		ssX += dx * dx
	}

	df := float64(n - 2)
	if ssX == 0 {
		nan := math.NaN()
		return LinFit{Slope: nan, Intercept: nan, PValue: nan, StdErr: nan}
	}

	stderr := math.Sqrt(ssRes / df / ssX)
	var p float64
	switch {
	case stderr == 0:
		p = 0
	default:
		t := math.Abs(slope / stderr)
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		p = 2 * dist.Survival(t)
	}

	return LinFit{Slope: slope, Intercept: intercept, PValue: p, StdErr: stderr}
}
