// Package points places reference points along the baseline shoreline and
// computes per-year signed movement distances for each of them.
package points

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/coastline-cli/internal/model"
)

// AlongLine emits reference points at fixed arc-length spacing along a
// multi-line, treating the parts as one merged line walked in order. An
// empty or nil geometry yields no points.
func AlongLine(ml *geom.MultiLineString, spacing float64) []*model.ReferencePoint {
	if ml == nil || ml.NumLineStrings() == 0 || spacing <= 0 {
		return nil
	}

	total := lineLength(ml)
	var pts []*model.ReferencePoint
	for d := 0.0; d < total; d += spacing {
		x, y := interpolate(ml, d)
		pts = append(pts, &model.ReferencePoint{
			X:           x,
			Y:           y,
			Distances:   make(map[int]float64),
			Regressions: make(map[string]model.RegressionResult),
		})
	}
	return pts
}

func lineLength(ml *geom.MultiLineString) float64 {
	total := 0.0
	for i := 0; i < ml.NumLineStrings(); i++ {
		ls := ml.LineString(i)
		for j := 1; j < ls.NumCoords(); j++ {
			total += dist(ls.Coord(j-1), ls.Coord(j))
		}
	}
	return total
}

// interpolate returns the point at arc-length d along the merged line,
// clamping to the final vertex.
func interpolate(ml *geom.MultiLineString, d float64) (x, y float64) {
	remaining := d
	var last geom.Coord
	for i := 0; i < ml.NumLineStrings(); i++ {
		ls := ml.LineString(i)
		for j := 1; j < ls.NumCoords(); j++ {
			a, b := ls.Coord(j-1), ls.Coord(j)
			seg := dist(a, b)
			if remaining <= seg && seg > 0 {
				t := remaining / seg
				return a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])
			}
			remaining -= seg
			last = b
		}
	}
	return last[0], last[1]
}

func dist(a, b geom.Coord) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}
