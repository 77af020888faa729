package raster

// Connectivity selects the pixel-adjacency rule used by Label.
type Connectivity int

const (
	// Conn4 treats only edge-sharing pixels as neighbors.
	Conn4 Connectivity = 4
	// Conn8 also treats corner-sharing pixels as neighbors.
	Conn8 Connectivity = 8
)

var (
	conn4Offsets = [][2]int{{-1, 0}, {0, -1}}
	conn8Offsets = [][2]int{{-1, 0}, {0, -1}, {-1, -1}, {1, -1}}
)

// Label assigns a positive component label to every true cell of m under
// the given connectivity, with 0 for false cells. Labels are dense,
// starting at 1, in scan order of first appearance. Returns the label
// grid and the number of components.
func Label(m *Mask, conn Connectivity) ([]int32, int) {
	offs := conn4Offsets
	if conn == Conn8 {
		offs = conn8Offsets
	}

	labels := make([]int32, len(m.Data))
	parent := []int32{0} // union-find, parent[0] unused

	find := func(x int32) int32 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int32) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if ra < rb {
				parent[rb] = ra
			} else {
				parent[ra] = rb
			}
		}
	}

	next := int32(1)
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			idx := row*m.Width + col
			if !m.Data[idx] {
				continue
			}
			var assigned int32
			for _, o := range offs {
				nc, nr := col+o[0], row+o[1]
				if nc < 0 || nr < 0 || nc >= m.Width || nr >= m.Height {
					continue
				}
				n := labels[nr*m.Width+nc]
				if n == 0 {
					continue
				}
				if assigned == 0 {
					assigned = n
				} else {
					union(assigned, n)
				}
			}
			if assigned == 0 {
				assigned = next
				parent = append(parent, next)
				next++
			}
			labels[idx] = assigned
		}
	}

	// Second pass: flatten the union-find and renumber densely.
	remap := make(map[int32]int32)
	count := int32(0)
	for i, l := range labels {
		if l == 0 {
			continue
		}
		root := find(l)
		dense, ok := remap[root]
		if !ok {
			count++
			dense = count
			remap[root] = dense
		}
		labels[i] = dense
	}
	return labels, int(count)
}
