package raster

// Sieve removes connected regions of g smaller than minSize cells,
// replacing their class code with the most common code among the
// neighboring cells of the region. Operates in place on a copy and
// returns the cleaned grid.
func Sieve(g *Int8Grid, minSize int, conn Connectivity) *Int8Grid {
	out := &Int8Grid{Width: g.Width, Height: g.Height, Data: make([]int8, len(g.Data)), Transform: g.Transform, CRS: g.CRS}
	copy(out.Data, g.Data)
	if minSize <= 1 {
		return out
	}

	// Label each class value independently by scanning all cells of one
	// value at a time. A mask per distinct value keeps this simple.
	seen := map[int8]bool{}
	for _, v := range g.Data {
		seen[v] = true
	}

	for value := range seen {
		m := NewMask(g.Width, g.Height)
		for i, v := range g.Data {
			m.Data[i] = v == value
		}
		labels, n := Label(m, conn)
		if n == 0 {
			continue
		}
		sizes := make([]int, n+1)
		for _, l := range labels {
			if l > 0 {
				sizes[l]++
			}
		}
		for row := 0; row < g.Height; row++ {
			for col := 0; col < g.Width; col++ {
				l := labels[row*g.Width+col]
				if l == 0 || sizes[l] >= minSize {
					continue
				}
				out.Data[row*g.Width+col] = majorityNeighbor(g, labels, l, col, row, value)
			}
		}
	}
	return out
}

// majorityNeighbor returns the most common class code among the 4-adjacent
// cells outside the labelled region, falling back to the original value
// when the region touches nothing else.
func majorityNeighbor(g *Int8Grid, labels []int32, region int32, col, row int, fallback int8) int8 {
	counts := map[int8]int{}
	for _, o := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nc, nr := col+o[0], row+o[1]
		if nc < 0 || nr < 0 || nc >= g.Width || nr >= g.Height {
			continue
		}
		if labels[nr*g.Width+nc] == region {
			continue
		}
		counts[g.Data[nr*g.Width+nc]]++
	}
	best, bestN := fallback, 0
	for v, n := range counts {
		if n > bestN {
			best, bestN = v, n
		}
	}
	return best
}
