package mask

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/coastline-cli/internal/raster"
)

// WaterbodyFeature is one polygon from the waterbody-exclusion
// collaborator. Kind distinguishes base features from the "add"/"remove"
// modification layer.
type WaterbodyFeature struct {
	Geometry *geom.Polygon
	Kind     WaterbodyKind
}

// WaterbodyKind enumerates the waterbody feature sources.
type WaterbodyKind int

const (
	// WaterbodyBase is a feature from the primary surface-water dataset.
	WaterbodyBase WaterbodyKind = iota
	// WaterbodyAdd is a modification feature added to the mask.
	WaterbodyAdd
	// WaterbodyRemove is a modification feature carved out of the mask.
	WaterbodyRemove
)

// RasterizeWaterbodies burns waterbody polygons into a boolean exclusion
// mask in cell space. Base and "add" features set cells; "remove"
// features clear them afterwards, mirroring the vector overlay of the
// source datasets at raster resolution. No intersecting features yields
// an all-false mask, never an error.
func RasterizeWaterbodies(features []WaterbodyFeature, width, height int, transform raster.Affine) *raster.Mask {
	m := raster.NewMask(width, height)
	for _, f := range features {
		if f.Kind == WaterbodyRemove || f.Geometry == nil {
			continue
		}
		burnPolygon(m, f.Geometry, transform, true)
	}
	for _, f := range features {
		if f.Kind != WaterbodyRemove || f.Geometry == nil {
			continue
		}
		burnPolygon(m, f.Geometry, transform, false)
	}
	return m
}

// burnPolygon sets (or clears) every cell whose center falls inside the
// polygon, plus every cell its boundary passes through ("all touched").
func burnPolygon(m *raster.Mask, poly *geom.Polygon, transform raster.Affine, value bool) {
	// Bounding box in cell space limits the scan.
	b := poly.Bounds()
	c0, r0 := transform.WorldToCell(b.Min(0), b.Min(1))
	c1, r1 := transform.WorldToCell(b.Max(0), b.Max(1))
	minCol, maxCol := intBounds(c0, c1, m.Width)
	minRow, maxRow := intBounds(r0, r1, m.Height)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			x, y := transform.CellCenter(col, row)
			if pointInPolygon(poly, x, y) {
				m.Set(col, row, value)
			}
		}
	}

	// Boundary pass: walk every ring segment in cell space and mark the
	// cells it crosses.
	for i := 0; i < poly.NumLinearRings(); i++ {
		ring := poly.LinearRing(i)
		coords := ring.Coords()
		for j := 1; j < len(coords); j++ {
			burnSegment(m, transform, coords[j-1], coords[j], value)
		}
	}
}

func intBounds(a, b float64, limit int) (lo, hi int) {
	if a > b {
		a, b = b, a
	}
	lo, hi = int(a), int(b)+1
	if lo < 0 {
		lo = 0
	}
	if hi > limit-1 {
		hi = limit - 1
	}
	return lo, hi
}

// burnSegment marks the cells traversed by one world-space segment,
// stepping at quarter-cell resolution.
func burnSegment(m *raster.Mask, transform raster.Affine, a, b geom.Coord, value bool) {
	ca, ra := transform.WorldToCell(a[0], a[1])
	cb, rb := transform.WorldToCell(b[0], b[1])
	dc, dr := cb-ca, rb-ra
	steps := int(4 * (abs(dc) + abs(dr)))
	if steps < 1 {
		steps = 1
	}
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		m.Set(int(ca+dc*t), int(ra+dr*t), value)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// pointInPolygon tests x,y against the polygon using even-odd ray
// casting over all rings (holes invert containment).
func pointInPolygon(poly *geom.Polygon, x, y float64) bool {
	inside := false
	for i := 0; i < poly.NumLinearRings(); i++ {
		if pointInRing(poly.LinearRing(i), x, y) {
			inside = !inside
		}
	}
	return inside
}

func pointInRing(ring *geom.LinearRing, x, y float64) bool {
	coords := ring.Coords()
	inside := false
	n := len(coords)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := coords[i][0], coords[i][1]
		xj, yj := coords[j][0], coords[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
