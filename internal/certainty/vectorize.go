// Package certainty classifies shoreline segments by confidence: it
// vectorizes the uncertain classes of the diagnostic raster into
// polygons, clips each year's contour by them, and applies the fixed
// historical overrides.
package certainty

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/coastline-cli/internal/raster"
)

// ClassPolygons groups the vectorized polygons of one diagnostic class.
type ClassPolygons struct {
	Code     int8
	Polygons []*geom.Polygon
}

// Vectorize extracts polygons for each requested diagnostic class. The
// raster is sieved to drop isolated pixels, each class's regions traced
// to rings at pixel resolution, and the rings simplified with the given
// tolerance to remove stair-stepping.
func Vectorize(diag *raster.Int8Grid, classes []int8, tolerance float64) []ClassPolygons {
	clean := raster.Sieve(diag, 3, raster.Conn4)

	var out []ClassPolygons
	for _, code := range classes {
		m := raster.NewMask(clean.Width, clean.Height)
		for i, v := range clean.Data {
			m.Data[i] = v == code
		}
		if !m.Any() {
			continue
		}
		polys := tracePolygons(m, clean.Transform, tolerance)
		if len(polys) > 0 {
			out = append(out, ClassPolygons{Code: code, Polygons: polys})
		}
	}
	return out
}

// tracePolygons converts the true regions of a mask into simplified
// polygons. The mask is padded by one false cell on every side so regions
// touching the grid border still close.
func tracePolygons(m *raster.Mask, transform raster.Affine, tolerance float64) []*geom.Polygon {
	pad := paddedMask{m}
	segs := marchMask(pad)
	rings := chainRings(segs)

	var polys []*geom.Polygon
	for _, ring := range rings {
		if len(ring) < 4 {
			continue
		}
		simplified := simplifyRing(ring, toleranceCells(tolerance, transform))
		if len(simplified) < 4 {
			continue
		}
		coords := make([]geom.Coord, len(simplified))
		for i, v := range simplified {
			// Padding shifted cells by one; undo it, then convert with
			// the half-cell center offset.
			x, y := transform.Apply(v.col-1+0.5, v.row-1+0.5)
			coords[i] = geom.Coord{x, y}
		}
		poly := geom.NewPolygon(geom.XY)
		if _, err := poly.SetCoords([][]geom.Coord{coords}); err != nil {
			continue
		}
		polys = append(polys, poly)
	}
	return polys
}

// toleranceCells converts a map-unit simplification tolerance to cell
// units, the coordinate space the rings are traced in.
func toleranceCells(tolerance float64, transform raster.Affine) float64 {
	px := transform.PixelWidth()
	if px == 0 {
		return tolerance
	}
	return tolerance / px
}

type vertex struct {
	row, col float64
}

type segment struct {
	a, b vertex
}

// paddedMask views a mask with a one-cell false border, in shifted
// coordinates.
type paddedMask struct{ m *raster.Mask }

func (p paddedMask) at(col, row int) bool {
	return p.m.At(col-1, row-1)
}

func (p paddedMask) size() (int, int) {
	return p.m.Width + 2, p.m.Height + 2
}

// marchMask runs marching squares at the 0/1 boundary of a boolean mask,
// crossing every edge at its midpoint.
func marchMask(p paddedMask) []segment {
	w, h := p.size()
	var segs []segment
	val := func(c, r int) float64 {
		if p.at(c, r) {
			return 1
		}
		return 0
	}
	for r := 0; r < h-1; r++ {
		for c := 0; c < w-1; c++ {
			tl, tr := val(c, r), val(c+1, r)
			bl, br := val(c, r+1), val(c+1, r+1)

			idx := 0
			if tl > 0.5 {
				idx |= 8
			}
			if tr > 0.5 {
				idx |= 4
			}
			if br > 0.5 {
				idx |= 2
			}
			if bl > 0.5 {
				idx |= 1
			}
			if idx == 0 || idx == 15 {
				continue
			}

			top := vertex{float64(r), float64(c) + 0.5}
			right := vertex{float64(r) + 0.5, float64(c + 1)}
			bottom := vertex{float64(r + 1), float64(c) + 0.5}
			left := vertex{float64(r) + 0.5, float64(c)}
			emit := func(a, b vertex) { segs = append(segs, segment{a, b}) }

			switch idx {
			case 8, 7:
				emit(left, top)
			case 4, 11:
				emit(top, right)
			case 2, 13:
				emit(right, bottom)
			case 1, 14:
				emit(bottom, left)
			case 12, 3:
				emit(left, right)
			case 9, 6:
				emit(top, bottom)
			case 10:
				emit(left, top)
				emit(right, bottom)
			case 5:
				emit(top, right)
				emit(bottom, left)
			}
		}
	}
	return segs
}

// chainRings joins segments into closed rings (first vertex repeated at
// the end). Open chains cannot occur on a padded mask and are dropped.
func chainRings(segs []segment) [][]vertex {
	key := func(v vertex) [2]int64 {
		return [2]int64{int64(math.Round(v.row * 1e6)), int64(math.Round(v.col * 1e6))}
	}
	type endpoint struct {
		seg, end int
	}
	adj := make(map[[2]int64][]endpoint, len(segs)*2)
	for i, s := range segs {
		adj[key(s.a)] = append(adj[key(s.a)], endpoint{i, 0})
		adj[key(s.b)] = append(adj[key(s.b)], endpoint{i, 1})
	}

	used := make([]bool, len(segs))
	var rings [][]vertex
	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		ring := []vertex{segs[i].a, segs[i].b}
		cur := segs[i].b
		for {
			var next *endpoint
			for _, ep := range adj[key(cur)] {
				if !used[ep.seg] {
					next = &ep
					break
				}
			}
			if next == nil {
				break
			}
			used[next.seg] = true
			s := segs[next.seg]
			if next.end == 0 {
				cur = s.b
			} else {
				cur = s.a
			}
			ring = append(ring, cur)
		}
		if key(ring[0]) == key(ring[len(ring)-1]) {
			rings = append(rings, ring)
		}
	}
	return rings
}

// simplifyRing applies Douglas-Peucker to a closed ring, keeping the
// first/last anchor fixed and re-closing the result.
func simplifyRing(ring []vertex, tolerance float64) []vertex {
	if len(ring) <= 4 || tolerance <= 0 {
		return ring
	}
	open := ring[:len(ring)-1]
	// Split at the vertex farthest from the anchor to keep two stable
	// anchors for the recursion.
	far, maxD := 0, -1.0
	for i, v := range open {
		d := math.Hypot(v.row-open[0].row, v.col-open[0].col)
		if d > maxD {
			far, maxD = i, d
		}
	}
	if far == 0 {
		return ring
	}
	first := douglasPeucker(open[:far+1], tolerance)
	second := douglasPeucker(open[far:], tolerance)
	out := append([]vertex{}, first...)
	out = append(out, second[1:]...)
	out = append(out, open[0])
	return out
}

func douglasPeucker(pts []vertex, tolerance float64) []vertex {
	if len(pts) <= 2 {
		return pts
	}
	a, b := pts[0], pts[len(pts)-1]
	far, maxD := 0, 0.0
	for i := 1; i < len(pts)-1; i++ {
		d := perpDistance(pts[i], a, b)
		if d > maxD {
			far, maxD = i, d
		}
	}
	if maxD <= tolerance {
		return []vertex{a, b}
	}
	left := douglasPeucker(pts[:far+1], tolerance)
	right := douglasPeucker(pts[far:], tolerance)
	out := make([]vertex, 0, len(left)+len(right)-1)
	out = append(out, left[:len(left)-1]...)
	out = append(out, right...)
	return out
}

func perpDistance(p, a, b vertex) float64 {
	dr, dc := b.row-a.row, b.col-a.col
	len2 := dr*dr + dc*dc
	if len2 == 0 {
		return math.Hypot(p.row-a.row, p.col-a.col)
	}
	t := ((p.row-a.row)*dr + (p.col-a.col)*dc) / len2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p.row-(a.row+t*dr), p.col-(a.col+t*dc))
}
