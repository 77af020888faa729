package raster

import "math"

// Sample bilinearly interpolates the grid value at the given map
// coordinates, treating cell values as located at cell centers. Returns
// NaN outside the grid or when any contributing cell is nodata.
func Sample(g *Grid, x, y float64) float64 {
	col, row := g.Transform.WorldToCell(x, y)
	if math.IsNaN(col) || math.IsNaN(row) {
		return math.NaN()
	}

	// Shift to cell-center coordinates.
	fc, fr := col-0.5, row-0.5
	c0, r0 := int(math.Floor(fc)), int(math.Floor(fr))
	tx, ty := fc-float64(c0), fr-float64(r0)

	v00 := g.At(c0, r0)
	v10 := g.At(c0+1, r0)
	v01 := g.At(c0, r0+1)
	v11 := g.At(c0+1, r0+1)

	// Degrade to nearest-cell when some corners are nodata so points near
	// the coastal mask edge still sample a value.
	if math.IsNaN(v00) || math.IsNaN(v10) || math.IsNaN(v01) || math.IsNaN(v11) {
		return SampleNearest(g, x, y)
	}

	top := v00*(1-tx) + v10*tx
	bot := v01*(1-tx) + v11*tx
	return top*(1-ty) + bot*ty
}

// SampleNearest returns the value of the cell whose center is nearest to
// the given map coordinates, or NaN outside the grid.
func SampleNearest(g *Grid, x, y float64) float64 {
	col, row := g.Transform.WorldToCell(x, y)
	if math.IsNaN(col) || math.IsNaN(row) {
		return math.NaN()
	}
	c, r := int(math.Floor(col)), int(math.Floor(row))
	return g.At(c, r)
}

// CellAt returns the integer cell indices containing the map coordinates
// and whether they fall inside the grid bounds.
func CellAt(width, height int, t Affine, x, y float64) (col, row int, ok bool) {
	fc, fr := t.WorldToCell(x, y)
	if math.IsNaN(fc) || math.IsNaN(fr) {
		return 0, 0, false
	}
	col, row = int(math.Floor(fc)), int(math.Floor(fr))
	if col < 0 || row < 0 || col >= width || row >= height {
		return 0, 0, false
	}
	return col, row, true
}
