package mask

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coastline-cli/internal/raster"
)

// PreprocessParams configures the coastal zone composer. Zero-value
// fields fall back to the production defaults via DefaultPreprocessParams.
type PreprocessParams struct {
	// IndexThreshold separates land (index below) from water.
	IndexThreshold float64
	// BufferPixels is the radius of the coastal analysis buffer.
	BufferPixels int
	// ClosingRadius closes narrow channels before the all-time zone is
	// derived, excluding them from the analysis.
	ClosingRadius int
	// StdevThreshold flags tidal-uncertainty pixels.
	StdevThreshold float64
	// MinObsCount is the observation count below which a pixel is
	// considered under-observed and gapfilled.
	MinObsCount float64
	// PersistenceFraction is the fraction of valid years a reliability
	// flag must hold before a pixel is considered persistently unreliable.
	PersistenceFraction float64
	// ErosionRadius isolates spatially persistent unreliable regions from
	// isolated noisy pixels.
	ErosionRadius int
	// LandFrequency is the fraction of valid years a pixel must be land
	// to join the stable shoreline zone.
	LandFrequency float64
	// Ocean configures the per-year connectivity mask builder.
	Ocean OceanOptions
	// AllTimeConnectivity is the adjacency rule for the all-time zone.
	AllTimeConnectivity raster.Connectivity
	// Waterbody is the rasterized exclusion mask (may be all-false).
	Waterbody *raster.Mask
	// LandcoverWater optionally nulls out pixels matching an external
	// land-cover water class to suppress a known bias source.
	LandcoverWater *raster.Mask
	// Seeds are the known-ocean points anchoring connectivity.
	Seeds []Seed
}

// DefaultPreprocessParams returns the production composer parameters.
func DefaultPreprocessParams() PreprocessParams {
	return PreprocessParams{
		IndexThreshold:      0.0,
		BufferPixels:        25,
		ClosingRadius:       5,
		StdevThreshold:      0.25,
		MinObsCount:         5,
		PersistenceFraction: 0.5,
		ErosionRadius:       2,
		LandFrequency:       0.2,
		Ocean:               DefaultOceanOptions(),
		AllTimeConnectivity: raster.Conn4,
	}
}

// Result is the output of the coastal zone composer.
type Result struct {
	// Years lists the analysis years in stack order.
	Years []int
	// Index holds, per year, the gapfilled but unmasked water index grid.
	// Change directionality samples these, not the masked grids.
	Index map[int]*raster.Grid
	// MaskedIndex holds, per year, the water index grid restricted to the
	// final analysis mask (nodata elsewhere).
	MaskedIndex map[int]*raster.Grid
	// FinalMasks holds the per-year composite inclusion masks.
	FinalMasks map[int]*raster.Mask
	// CoastalBuffer is the all-time analysis zone.
	CoastalBuffer *raster.Mask
	// Diagnostic is the categorical certainty raster.
	Diagnostic *raster.Int8Grid
	// PersistentStdev and PersistentLowObs flag persistently unreliable
	// regions, retained for certainty classification.
	PersistentStdev  *raster.Mask
	PersistentLowObs *raster.Mask
}

// Preprocess runs the coastal zone composer over the annual and gapfill
// stacks: reliability flagging, gapfill substitution, thresholding,
// temporal filtering, buffer composition and diagnostic assembly.
func Preprocess(yearly, gapfill *raster.Stack, p PreprocessParams) (*Result, error) {
	width, height := yearly.Shape()
	transform := yearly.Transform()
	crs := yearly.CRS()

	if p.Waterbody == nil {
		p.Waterbody = raster.NewMask(width, height)
	}
	if p.Waterbody.Width != width || p.Waterbody.Height != height {
		return nil, eris.Errorf("mask: waterbody mask shape %dx%d does not match stack %dx%d",
			p.Waterbody.Width, p.Waterbody.Height, width, height)
	}

	years := yearly.Years()
	nYears := len(years)

	// Persistently unreliable pixels: fraction of valid-observation years
	// where stdev or count breach their thresholds, then eroded so only
	// spatially persistent regions remain.
	stdevFrac := raster.NewMask(width, height)
	lowObsFrac := raster.NewMask(width, height)
	for i := 0; i < width*height; i++ {
		valid, stdevHits, countHits := 0, 0, 0
		for _, l := range yearly.Layers {
			if math.IsNaN(l.Index.Data[i]) {
				continue
			}
			valid++
			if l.Stdev.Data[i] > p.StdevThreshold {
				stdevHits++
			}
			if l.Count.Data[i] < p.MinObsCount {
				countHits++
			}
		}
		if valid == 0 {
			continue
		}
		stdevFrac.Data[i] = float64(stdevHits)/float64(valid) > p.PersistenceFraction
		lowObsFrac.Data[i] = float64(countHits)/float64(valid) > p.PersistenceFraction
	}
	persistentStdev := raster.Erode(stdevFrac, p.ErosionRadius)
	persistentLowObs := raster.Erode(lowObsFrac, p.ErosionRadius)

	// Gapfill substitution and per-year land classification.
	index := make(map[int]*raster.Grid, nYears)
	land := make([]*raster.Mask, nYears)
	validCells := make([]*raster.Mask, nYears)
	substituted := 0
	for yi, l := range yearly.Layers {
		g := l.Index.Clone()
		if gl := gapfill.Layer(l.Year); gl != nil {
			for i := range g.Data {
				if !(l.Count.Data[i] > p.MinObsCount) {
					g.Data[i] = gl.Index.Data[i]
					substituted++
				}
			}
		}
		index[l.Year] = g

		yearLand := raster.NewMask(width, height)
		yearValid := raster.NewMask(width, height)
		for i, v := range g.Data {
			if math.IsNaN(v) {
				// Nodata blocks connectivity: a seed on a nodata cell is
				// ignored and flooding cannot pass through nodata gaps.
				yearLand.Data[i] = true
				continue
			}
			if p.Waterbody.Data[i] {
				continue
			}
			if p.LandcoverWater != nil && p.LandcoverWater.Data[i] {
				yearValid.Data[i] = true
				continue
			}
			yearValid.Data[i] = true
			yearLand.Data[i] = v < p.IndexThreshold
		}
		land[yi] = yearLand
		validCells[yi] = yearValid
	}
	zap.L().Debug("mask: gapfill substitution complete", zap.Int("cells", substituted))

	temporal := TemporalFilter(land, p.Ocean.Connectivity)

	// All-time land frequency over valid years defines the stable zone.
	allTime := raster.NewMask(width, height)
	for i := 0; i < width*height; i++ {
		valid, hits := 0, 0
		for yi := range land {
			if !validCells[yi].Data[i] {
				continue
			}
			valid++
			if land[yi].Data[i] && temporal[yi].Data[i] {
				hits++
			}
		}
		if valid > 0 && float64(hits)/float64(valid) >= p.LandFrequency {
			allTime.Data[i] = true
		}
	}

	coastal := CoastalBuffer(allTime, transform, p.Seeds, p.BufferPixels, p.ClosingRadius, p.AllTimeConnectivity)

	// Per-year composite: ocean connectivity AND coastal buffer AND
	// temporal contiguity.
	maskedIndex := make(map[int]*raster.Grid, nYears)
	finalMasks := make(map[int]*raster.Mask, nYears)
	for yi, year := range years {
		annualOcean := Ocean(land[yi], transform, p.Seeds, p.Ocean)
		final := annualOcean.And(coastal).And(temporal[yi])
		finalMasks[year] = final
		maskedIndex[year] = index[year].MaskedWhere(final)
	}

	diag := BuildDiagnostic(coastal, persistentStdev, persistentLowObs, p.Waterbody, transform, crs)

	return &Result{
		Years:            years,
		Index:            index,
		MaskedIndex:      maskedIndex,
		FinalMasks:       finalMasks,
		CoastalBuffer:    coastal,
		Diagnostic:       diag,
		PersistentStdev:  persistentStdev,
		PersistentLowObs: persistentLowObs,
	}, nil
}
