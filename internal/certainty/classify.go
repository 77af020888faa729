package certainty

import (
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/coastline-cli/internal/mask"
	"github.com/sells-group/coastline-cli/internal/model"
	"github.com/sells-group/coastline-cli/internal/raster"
)

// SimplifyTolerance removes pixel stair-stepping from vectorized class
// polygons, in map units.
const SimplifyTolerance = 30.0

// UncertainClasses are the diagnostic codes treated as uncertain.
var UncertainClasses = []int8{mask.ClassTidal, mask.ClassLowObs}

// classCertainty maps diagnostic codes to certainty labels.
var classCertainty = map[int8]model.Certainty{
	mask.ClassTidal:  model.CertaintyTidal,
	mask.ClassLowObs: model.CertaintyLowObs,
}

// Overrides configures fixed historical reclassifications.
type Overrides struct {
	// AerosolYears are reclassified as aerosol-affected when north of
	// AerosolNorthOfY (in analysis CRS units), encoding the 1991 Mt
	// Pinatubo calibration bias.
	AerosolYears    []int
	AerosolNorthOfY float64
	// Enabled guards the override so tiles outside the affected region
	// can turn it off.
	Enabled bool
}

// DefaultOverrides returns the production override settings; the latitude
// threshold is tile-specific and must be set by the caller.
func DefaultOverrides(northOfY float64) Overrides {
	return Overrides{AerosolYears: []int{1991, 1992}, AerosolNorthOfY: northOfY, Enabled: true}
}

// Classify splits each year's contour into segments tagged by certainty.
// Uncertain diagnostic classes are vectorized and each contour clipped by
// the class polygons; pieces outside every class polygon are good. The
// aerosol override is applied last, over every class.
func Classify(contours map[int]*geom.MultiLineString, diag *raster.Int8Grid, ov Overrides) []model.ShorelineSegment {
	classPolys := Vectorize(diag, UncertainClasses, SimplifyTolerance)

	years := make([]int, 0, len(contours))
	for y := range contours {
		years = append(years, y)
	}
	sort.Ints(years)

	var segments []model.ShorelineSegment
	for _, year := range years {
		pieces := splitByClasses(contours[year], classPolys)
		for _, p := range pieces {
			cert := p.certainty
			if overrideApplies(ov, year, p.geometry) {
				cert = model.CertaintyAerosol
			}
			segments = append(segments, model.ShorelineSegment{
				Year:      year,
				Certainty: cert,
				Geometry:  p.geometry,
			})
		}
	}
	return segments
}

type piece struct {
	certainty model.Certainty
	geometry  *geom.MultiLineString
}

// splitByClasses partitions a multi-line by which class polygon each
// segment midpoint falls in. First matching class wins at a boundary, in
// UncertainClasses order.
func splitByClasses(ml *geom.MultiLineString, classPolys []ClassPolygons) []piece {
	if ml == nil || ml.NumLineStrings() == 0 {
		return nil
	}

	parts := map[model.Certainty][][]geom.Coord{}
	for i := 0; i < ml.NumLineStrings(); i++ {
		coords := ml.LineString(i).Coords()
		var run []geom.Coord
		var runClass model.Certainty

		flush := func() {
			if len(run) >= 2 {
				parts[runClass] = append(parts[runClass], run)
			}
			run = nil
		}

		for j := 1; j < len(coords); j++ {
			mid := geom.Coord{(coords[j-1][0] + coords[j][0]) / 2, (coords[j-1][1] + coords[j][1]) / 2}
			c := classAt(mid, classPolys)
			if run == nil {
				run = []geom.Coord{coords[j-1], coords[j]}
				runClass = c
				continue
			}
			if c == runClass {
				run = append(run, coords[j])
				continue
			}
			flush()
			run = []geom.Coord{coords[j-1], coords[j]}
			runClass = c
		}
		flush()
	}

	var out []piece
	for _, cert := range []model.Certainty{model.CertaintyGood, model.CertaintyTidal, model.CertaintyLowObs} {
		lines := parts[cert]
		if len(lines) == 0 {
			continue
		}
		g := geom.NewMultiLineString(geom.XY)
		for _, coords := range lines {
			_ = g.Push(geom.NewLineString(geom.XY).MustSetCoords(coords))
		}
		out = append(out, piece{certainty: cert, geometry: g})
	}
	return out
}

func classAt(pt geom.Coord, classPolys []ClassPolygons) model.Certainty {
	for _, cp := range classPolys {
		for _, poly := range cp.Polygons {
			if pointInPolygon(poly, pt[0], pt[1]) {
				return classCertainty[cp.Code]
			}
		}
	}
	return model.CertaintyGood
}

// overrideApplies tests the aerosol override: affected year and segment
// centroid north of the configured threshold.
func overrideApplies(ov Overrides, year int, ml *geom.MultiLineString) bool {
	if !ov.Enabled {
		return false
	}
	match := false
	for _, y := range ov.AerosolYears {
		if y == year {
			match = true
			break
		}
	}
	if !match {
		return false
	}
	cy, ok := centroidY(ml)
	return ok && cy > ov.AerosolNorthOfY
}

func centroidY(ml *geom.MultiLineString) (float64, bool) {
	var sum float64
	var n int
	for i := 0; i < ml.NumLineStrings(); i++ {
		ls := ml.LineString(i)
		for j := 0; j < ls.NumCoords(); j++ {
			sum += ls.Coord(j)[1]
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func pointInPolygon(poly *geom.Polygon, x, y float64) bool {
	inside := false
	for i := 0; i < poly.NumLinearRings(); i++ {
		ring := poly.LinearRing(i)
		coords := ring.Coords()
		n := len(coords)
		for a, b := 0, n-1; a < n; b, a = a, a+1 {
			xi, yi := coords[a][0], coords[a][1]
			xj, yj := coords[b][0], coords[b][1]
			if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
				inside = !inside
			}
		}
	}
	return inside
}
