// Package model defines the domain types shared across the shoreline
// change pipeline.
package model

import "github.com/twpayne/go-geom"

// Certainty is the confidence label attached to shoreline segments and
// mask classes.
type Certainty string

const (
	CertaintyGood    Certainty = "good"
	CertaintyTidal   Certainty = "tidal issues"
	CertaintyLowObs  Certainty = "insufficient data"
	CertaintyAerosol Certainty = "aerosol issues"
)

// RegressionResult holds the outputs of one robust linear fit for a
// single (point, regressor) pair. Values are NaN when fewer than two
// valid observations survive outlier exclusion.
type RegressionResult struct {
	Slope     float64
	Intercept float64
	PValue    float64
	StdErr    float64
	// Outliers is the whitespace-joined, sorted list of excluded labels
	// (missing-value rows plus MAD outliers).
	Outliers string
}

// PointStats are the all-time summary statistics for one reference point.
type PointStats struct {
	// ValidObs counts non-outlier annual observations.
	ValidObs int
	// ValidSpan is the year span between first and last valid observation.
	ValidSpan int
	// SCE is the Shoreline Change Envelope: max minus min signed distance.
	SCE float64
	// NSM is the Net Shoreline Movement between the oldest and most
	// recent valid shorelines.
	NSM float64
	// MaxYear and MinYear are the years of maximum (most seaward) and
	// minimum (most landward) distance.
	MaxYear int
	MinYear int
}

// ReferencePoint is a fixed-spacing sample along the baseline contour.
// Points are created once from the baseline year and never re-indexed.
type ReferencePoint struct {
	X, Y float64
	// Distances maps year to the signed distance from this point to that
	// year's shoreline. NaN marks a missing or implausible observation.
	Distances map[int]float64
	// Regressions maps regressor name ("time" or a climate index) to its
	// fit result.
	Regressions map[string]RegressionResult
	Stats       PointStats
}

// ShorelineSegment is one exported piece of an annual contour with its
// certainty classification.
type ShorelineSegment struct {
	Year      int
	Certainty Certainty
	// Maturity marks the baseline year's shoreline as interim, all
	// others as final.
	Maturity string
	Geometry *geom.MultiLineString
}

// ClimateSeries maps year to a scalar climate-index value.
type ClimateSeries map[int]float64
