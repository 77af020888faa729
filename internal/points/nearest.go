package points

import (
	"math"

	"github.com/twpayne/go-geom"
)

// NearestOnLine returns the closest point on any segment of the
// multi-line to (x, y), and the Euclidean distance to it. An empty
// geometry returns NaN coordinates and +Inf distance.
func NearestOnLine(x, y float64, ml *geom.MultiLineString) (nx, ny, d float64) {
	nx, ny = math.NaN(), math.NaN()
	d = math.Inf(1)
	if ml == nil {
		return nx, ny, d
	}
	for i := 0; i < ml.NumLineStrings(); i++ {
		ls := ml.LineString(i)
		coords := ls.Coords()
		if len(coords) == 1 {
			if dd := math.Hypot(coords[0][0]-x, coords[0][1]-y); dd < d {
				nx, ny, d = coords[0][0], coords[0][1], dd
			}
			continue
		}
		for j := 1; j < len(coords); j++ {
			px, py := nearestOnSegment(x, y, coords[j-1], coords[j])
			if dd := math.Hypot(px-x, py-y); dd < d {
				nx, ny, d = px, py, dd
			}
		}
	}
	return nx, ny, d
}

// nearestOnSegment projects (x, y) onto segment a-b, clamped to the
// segment ends.
func nearestOnSegment(x, y float64, a, b geom.Coord) (float64, float64) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	len2 := dx*dx + dy*dy
	if len2 == 0 {
		return a[0], a[1]
	}
	t := ((x-a[0])*dx + (y-a[1])*dy) / len2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a[0] + t*dx, a[1] + t*dy
}
