package contour

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/coastline-cli/internal/raster"
)

// ErrorMode selects how Extract handles a year that produces no contour.
type ErrorMode int

const (
	// ErrorModeIgnore logs failed years and skips them. Extraction still
	// fails when every year fails.
	ErrorModeIgnore ErrorMode = iota
	// ErrorModeRaise aborts on the first failed year.
	ErrorModeRaise
)

// Options configures contour extraction.
type Options struct {
	// MinVertices drops traced lines with fewer vertices, suppressing
	// noise. Values below 2 are treated as 2.
	MinVertices int
	// Mode is the failure policy for individual years.
	Mode ErrorMode
}

// gridAdapter satisfies the tracer interfaces over a raster grid.
type gridAdapter struct{ g *raster.Grid }

func (a gridAdapter) At(col, row int) float64 { return a.g.At(col, row) }
func (a gridAdapter) size() (int, int)        { return a.g.Width, a.g.Height }

// Extract traces the iso-contour at level z for every year's grid,
// returning one multi-line geometry per successful year in map
// coordinates, plus the sorted list of failed years. An error is returned
// when every year fails, or on the first failure in ErrorModeRaise.
func Extract(grids map[int]*raster.Grid, z float64, opts Options) (map[int]*geom.MultiLineString, []int, error) {
	years := make([]int, 0, len(grids))
	for y := range grids {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make(map[int]*geom.MultiLineString, len(grids))
	var failed []int
	for _, year := range years {
		ml := extractOne(grids[year], z, opts.MinVertices)
		if ml == nil || ml.NumLineStrings() == 0 {
			failed = append(failed, year)
			if opts.Mode == ErrorModeRaise {
				return nil, failed, eris.Errorf("contour: no contour at level %v for year %d", z, year)
			}
			zap.L().Warn("contour: no contour extracted", zap.Int("year", year), zap.Float64("level", z))
			continue
		}
		out[year] = ml
	}

	if len(out) == 0 {
		return nil, failed, eris.Errorf("contour: failed to generate any valid contours at level %v", z)
	}
	return out, failed, nil
}

// ExtractLevels runs in single-array, multiple z-value mode: one
// multi-line per requested level over one grid. Levels producing no lines
// are omitted from the result.
func ExtractLevels(g *raster.Grid, levels []float64, minVertices int) (map[float64]*geom.MultiLineString, error) {
	out := make(map[float64]*geom.MultiLineString, len(levels))
	for _, z := range levels {
		if ml := extractOne(g, z, minVertices); ml != nil && ml.NumLineStrings() > 0 {
			out[z] = ml
		}
	}
	if len(out) == 0 {
		return nil, eris.Errorf("contour: no contours for any of %d levels", len(levels))
	}
	return out, nil
}

// extractOne traces, filters and geocodes the contour lines of one grid.
func extractOne(g *raster.Grid, z float64, minVertices int) *geom.MultiLineString {
	if g == nil {
		return nil
	}
	if minVertices < 2 {
		minVertices = 2
	}

	lines := chainSegments(marchSegments(gridAdapter{g}, z))

	ml := geom.NewMultiLineString(geom.XY)
	for _, line := range lines {
		if len(line) < minVertices {
			continue
		}
		flat := make([]float64, 0, len(line)*2)
		for _, v := range line {
			// Half-cell offset places vertices relative to cell centers
			// rather than corners.
			x, y := g.Transform.Apply(v.col+0.5, v.row+0.5)
			flat = append(flat, x, y)
		}
		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := ml.Push(ls); err != nil {
			zap.L().Debug("contour: skipping malformed linestring", zap.Error(err))
		}
	}
	return ml
}
