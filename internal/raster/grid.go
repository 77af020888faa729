package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// Grid is a single-band float64 raster. NaN marks nodata.
type Grid struct {
	Width, Height int
	Data          []float64
	Transform     Affine
	CRS           string
}

// NewGrid allocates a grid filled with NaN.
func NewGrid(width, height int, transform Affine, crs string) *Grid {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{Width: width, Height: height, Data: data, Transform: transform, CRS: crs}
}

// At returns the value at (col, row). Out-of-bounds reads return NaN.
func (g *Grid) At(col, row int) float64 {
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return math.NaN()
	}
	return g.Data[row*g.Width+col]
}

// Set writes the value at (col, row). Out-of-bounds writes are ignored.
func (g *Grid) Set(col, row int, v float64) {
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return
	}
	g.Data[row*g.Width+col] = v
}

// IsNoData reports whether cell (col, row) is nodata or out of bounds.
func (g *Grid) IsNoData(col, row int) bool {
	return math.IsNaN(g.At(col, row))
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	data := make([]float64, len(g.Data))
	copy(data, g.Data)
	return &Grid{Width: g.Width, Height: g.Height, Data: data, Transform: g.Transform, CRS: g.CRS}
}

// MaskedWhere returns a copy of the grid with every cell outside keep set
// to nodata. The receiver is not modified.
func (g *Grid) MaskedWhere(keep *Mask) *Grid {
	out := g.Clone()
	for i := range out.Data {
		if !keep.Data[i] {
			out.Data[i] = math.NaN()
		}
	}
	return out
}

// Int8Grid is a single-band categorical raster of small class codes.
type Int8Grid struct {
	Width, Height int
	Data          []int8
	Transform     Affine
	CRS           string
}

// NewInt8Grid allocates a zero-filled categorical grid.
func NewInt8Grid(width, height int, transform Affine, crs string) *Int8Grid {
	return &Int8Grid{
		Width:     width,
		Height:    height,
		Data:      make([]int8, width*height),
		Transform: transform,
		CRS:       crs,
	}
}

// At returns the class code at (col, row); out-of-bounds reads return -1.
func (g *Int8Grid) At(col, row int) int8 {
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return -1
	}
	return g.Data[row*g.Width+col]
}

// Set writes the class code at (col, row). Out-of-bounds writes are ignored.
func (g *Int8Grid) Set(col, row int, v int8) {
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return
	}
	g.Data[row*g.Width+col] = v
}

// Layer bundles the per-year analysis grids for one annual time step.
type Layer struct {
	Year  int
	Index *Grid // water index (e.g. MNDWI)
	Tide  *Grid // tide height at observation time
	Count *Grid // clear observation count
	Stdev *Grid // water index standard deviation
}

// Stack is a year-ordered collection of layers sharing one shape,
// geotransform and CRS.
type Stack struct {
	Layers []Layer
}

// NewStack validates that every grid in every layer shares the shape,
// transform and CRS of the first, and returns the assembled stack.
func NewStack(layers []Layer) (*Stack, error) {
	if len(layers) == 0 {
		return nil, eris.New("raster: stack requires at least one layer")
	}
	ref := layers[0].Index
	if ref == nil {
		return nil, eris.New("raster: layer missing water index grid")
	}
	for _, l := range layers {
		for name, g := range map[string]*Grid{"index": l.Index, "tide": l.Tide, "count": l.Count, "stdev": l.Stdev} {
			if g == nil {
				return nil, eris.Errorf("raster: year %d missing %s grid", l.Year, name)
			}
			if g.Width != ref.Width || g.Height != ref.Height {
				return nil, eris.Errorf("raster: year %d %s grid shape %dx%d does not match stack %dx%d",
					l.Year, name, g.Width, g.Height, ref.Width, ref.Height)
			}
			if g.Transform != ref.Transform {
				return nil, eris.Errorf("raster: year %d %s grid transform differs from stack", l.Year, name)
			}
			if g.CRS != ref.CRS {
				return nil, eris.Errorf("raster: year %d %s grid CRS %q differs from stack %q", l.Year, name, g.CRS, ref.CRS)
			}
		}
	}
	return &Stack{Layers: layers}, nil
}

// Years returns the ordered list of years covered by the stack.
func (s *Stack) Years() []int {
	years := make([]int, len(s.Layers))
	for i, l := range s.Layers {
		years[i] = l.Year
	}
	return years
}

// Layer returns the layer for the given year, or nil if absent. A nil
// stack has no layers, so callers can pass one for an optional stack.
func (s *Stack) Layer(year int) *Layer {
	if s == nil {
		return nil
	}
	for i := range s.Layers {
		if s.Layers[i].Year == year {
			return &s.Layers[i]
		}
	}
	return nil
}

// Shape returns the common width and height of the stack grids.
func (s *Stack) Shape() (width, height int) {
	return s.Layers[0].Index.Width, s.Layers[0].Index.Height
}

// Transform returns the common geotransform of the stack grids.
func (s *Stack) Transform() Affine { return s.Layers[0].Index.Transform }

// CRS returns the common coordinate reference system of the stack grids.
func (s *Stack) CRS() string { return s.Layers[0].Index.CRS }
