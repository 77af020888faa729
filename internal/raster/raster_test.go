package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maskFromRows(rows []string) *Mask {
	h := len(rows)
	w := len(rows[0])
	m := NewMask(w, h)
	for r, line := range rows {
		for c, ch := range line {
			if ch == '#' {
				m.Set(c, r, true)
			}
		}
	}
	return m
}

func TestAffineRoundTrip(t *testing.T) {
	tr := Affine{A: 30, B: 0, C: 548040, D: 0, E: -30, F: 6886890}

	x, y := tr.Apply(10, 20)
	assert.Equal(t, 548040+300.0, x)
	assert.Equal(t, 6886890-600.0, y)

	col, row := tr.WorldToCell(x, y)
	assert.InDelta(t, 10.0, col, 1e-9)
	assert.InDelta(t, 20.0, row, 1e-9)
}

func TestAffineCellCenter(t *testing.T) {
	tr := Affine{A: 30, C: 0, E: -30, F: 0}
	x, y := tr.CellCenter(0, 0)
	assert.Equal(t, 15.0, x)
	assert.Equal(t, -15.0, y)
}

func TestLabelTwoBlobs(t *testing.T) {
	m := maskFromRows([]string{
		"##....",
		"##....",
		"....##",
		"....##",
	})
	labels, n := Label(m, Conn4)
	assert.Equal(t, 2, n)
	assert.Equal(t, labels[0], labels[1*6+1])
	assert.NotEqual(t, labels[0], labels[2*6+4])
	assert.Equal(t, int32(0), labels[1*6+3])
}

func TestLabelConnectivity(t *testing.T) {
	// Two diagonal pixels: separate under 4-connectivity, joined under 8.
	m := maskFromRows([]string{
		"#.",
		".#",
	})
	_, n4 := Label(m, Conn4)
	_, n8 := Label(m, Conn8)
	assert.Equal(t, 2, n4)
	assert.Equal(t, 1, n8)
}

func TestDilateErode(t *testing.T) {
	m := maskFromRows([]string{
		".....",
		".....",
		"..#..",
		".....",
		".....",
	})
	d := Dilate(m, 1)
	assert.Equal(t, 5, d.Count()) // plus shape
	assert.True(t, d.At(2, 1))
	assert.True(t, d.At(1, 2))
	assert.False(t, d.At(1, 1))

	e := Erode(d, 1)
	assert.Equal(t, 1, e.Count())
	assert.True(t, e.At(2, 2))
}

func TestCloseFillsGap(t *testing.T) {
	// A one-pixel channel between two land areas closes at radius 2.
	m := maskFromRows([]string{
		"#######",
		"###.###",
		"#######",
	})
	closed := Close(m, 2)
	assert.True(t, closed.At(3, 1))
}

func TestMaskOps(t *testing.T) {
	a := maskFromRows([]string{"##.", "..."})
	b := maskFromRows([]string{".#.", "..#"})
	assert.Equal(t, 1, a.And(b).Count())
	assert.Equal(t, 3, a.Or(b).Count())
	assert.Equal(t, 4, a.Not().Count())
	assert.True(t, a.Any())
	assert.False(t, NewMask(2, 2).Any())
}

func TestSampleBilinear(t *testing.T) {
	tr := Affine{A: 1, C: 0, E: -1, F: 0}
	g := NewGrid(2, 2, tr, "EPSG:3577")
	g.Set(0, 0, 0)
	g.Set(1, 0, 1)
	g.Set(0, 1, 2)
	g.Set(1, 1, 3)

	// Midpoint of the four cell centers.
	v := Sample(g, 1.0, -1.0)
	assert.InDelta(t, 1.5, v, 1e-9)

	// Exactly on a cell center.
	v = Sample(g, 0.5, -0.5)
	assert.InDelta(t, 0.0, v, 1e-9)

	// Outside the grid.
	assert.True(t, math.IsNaN(Sample(g, 10, 10)))
}

func TestStackValidation(t *testing.T) {
	tr := Affine{A: 30, E: -30}
	mk := func(w, h int) *Grid { return NewGrid(w, h, tr, "EPSG:3577") }

	layer := func(year, w, h int) Layer {
		return Layer{Year: year, Index: mk(w, h), Tide: mk(w, h), Count: mk(w, h), Stdev: mk(w, h)}
	}

	_, err := NewStack([]Layer{layer(2019, 4, 4), layer(2020, 4, 4)})
	require.NoError(t, err)

	_, err = NewStack([]Layer{layer(2019, 4, 4), layer(2020, 5, 4)})
	assert.Error(t, err)

	_, err = NewStack(nil)
	assert.Error(t, err)
}

func TestSieveRemovesSmallRegions(t *testing.T) {
	tr := Affine{A: 1, E: -1}
	g := NewInt8Grid(5, 5, tr, "")
	// Single isolated class-4 pixel inside a class-0 field.
	g.Set(2, 2, 4)
	out := Sieve(g, 3, Conn4)
	assert.Equal(t, int8(0), out.At(2, 2))

	// A 4-pixel region survives a minSize of 3.
	g2 := NewInt8Grid(5, 5, tr, "")
	for _, c := range [][2]int{{1, 1}, {2, 1}, {1, 2}, {2, 2}} {
		g2.Set(c[0], c[1], 5)
	}
	out2 := Sieve(g2, 3, Conn4)
	assert.Equal(t, int8(5), out2.At(1, 1))
}
