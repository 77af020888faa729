// Package contour extracts sub-pixel iso-contours from raster grids using
// a marching-squares tracer, returning geocoded multi-line geometry.
package contour

import (
	"math"
)

// vertex is a contour point in continuous (row, col) array coordinates.
type vertex struct {
	row, col float64
}

// segment is one cell-local contour piece.
type segment struct {
	a, b vertex
}

// edge identifiers within one 2x2 cell.
const (
	edgeTop = iota
	edgeRight
	edgeBottom
	edgeLeft
)

// gridValues abstracts the value lookup so the tracer is independent of
// the grid container.
type gridValues interface {
	At(col, row int) float64
}

type gridSize interface {
	gridValues
	size() (w, h int)
}

// marchSegments runs marching squares over the grid at the given level,
// returning all cell-local segments. Cells with any nodata corner are
// skipped so contours break at the mask edge.
func marchSegments(g gridSize, level float64) []segment {
	w, h := g.size()
	var segs []segment

	for r := 0; r < h-1; r++ {
		for c := 0; c < w-1; c++ {
			tl := g.At(c, r)
			tr := g.At(c+1, r)
			br := g.At(c+1, r+1)
			bl := g.At(c, r+1)
			if math.IsNaN(tl) || math.IsNaN(tr) || math.IsNaN(br) || math.IsNaN(bl) {
				continue
			}

			idx := 0
			if tl > level {
				idx |= 8
			}
			if tr > level {
				idx |= 4
			}
			if br > level {
				idx |= 2
			}
			if bl > level {
				idx |= 1
			}
			if idx == 0 || idx == 15 {
				continue
			}

			cross := func(e int) vertex {
				switch e {
				case edgeTop:
					return vertex{float64(r), float64(c) + frac(tl, tr, level)}
				case edgeRight:
					return vertex{float64(r) + frac(tr, br, level), float64(c + 1)}
				case edgeBottom:
					return vertex{float64(r + 1), float64(c) + frac(bl, br, level)}
				default:
					return vertex{float64(r) + frac(tl, bl, level), float64(c)}
				}
			}
			emit := func(e1, e2 int) {
				segs = append(segs, segment{cross(e1), cross(e2)})
			}

			switch idx {
			case 8, 7: // TL isolated
				emit(edgeLeft, edgeTop)
			case 4, 11: // TR isolated
				emit(edgeTop, edgeRight)
			case 2, 13: // BR isolated
				emit(edgeRight, edgeBottom)
			case 1, 14: // BL isolated
				emit(edgeBottom, edgeLeft)
			case 12, 3: // horizontal split
				emit(edgeLeft, edgeRight)
			case 9, 6: // vertical split
				emit(edgeTop, edgeBottom)
			case 10: // saddle: TL and BR above
				if (tl+tr+br+bl)/4 > level {
					emit(edgeTop, edgeRight)
					emit(edgeBottom, edgeLeft)
				} else {
					emit(edgeLeft, edgeTop)
					emit(edgeRight, edgeBottom)
				}
			case 5: // saddle: TR and BL above
				if (tl+tr+br+bl)/4 > level {
					emit(edgeLeft, edgeTop)
					emit(edgeRight, edgeBottom)
				} else {
					emit(edgeTop, edgeRight)
					emit(edgeBottom, edgeLeft)
				}
			}
		}
	}
	return segs
}

// frac returns the interpolation fraction where the level crosses between
// two corner values. Degenerate (equal) corners split at the midpoint.
func frac(a, b, level float64) float64 {
	if a == b {
		return 0.5
	}
	t := (level - a) / (b - a)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// chainSegments joins cell-local segments into polylines by matching
// endpoints. Closed rings come back with identical first and last vertex.
func chainSegments(segs []segment) [][]vertex {
	type endpoint struct {
		seg int
		end int // 0 = a, 1 = b
	}
	adj := make(map[[2]int64][]endpoint, len(segs)*2)
	key := func(v vertex) [2]int64 {
		return [2]int64{int64(math.Round(v.row * 1e6)), int64(math.Round(v.col * 1e6))}
	}
	for i, s := range segs {
		adj[key(s.a)] = append(adj[key(s.a)], endpoint{i, 0})
		adj[key(s.b)] = append(adj[key(s.b)], endpoint{i, 1})
	}

	used := make([]bool, len(segs))
	var lines [][]vertex

	// walk extends a chain from vertex v, consuming unused segments.
	walk := func(v vertex) []vertex {
		var path []vertex
		for {
			var next *endpoint
			for _, ep := range adj[key(v)] {
				if !used[ep.seg] {
					next = &ep
					break
				}
			}
			if next == nil {
				return path
			}
			used[next.seg] = true
			s := segs[next.seg]
			if next.end == 0 {
				v = s.b
			} else {
				v = s.a
			}
			path = append(path, v)
		}
	}

	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		s := segs[i]

		forward := walk(s.b)
		backward := walk(s.a)

		line := make([]vertex, 0, len(backward)+len(forward)+2)
		for j := len(backward) - 1; j >= 0; j-- {
			line = append(line, backward[j])
		}
		line = append(line, s.a, s.b)
		line = append(line, forward...)
		lines = append(lines, line)
	}
	return lines
}
