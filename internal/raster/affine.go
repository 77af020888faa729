// Package raster provides the grid primitives shared by the shoreline
// masking and extraction pipeline: float and categorical grids, boolean
// masks, affine geotransforms, binary morphology and connected-component
// labelling.
package raster

import "math"

// Affine is a world-file style geotransform mapping column/row raster
// coordinates to projected map coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// For north-up imagery B and D are zero, A is the pixel width and E the
// (negative) pixel height.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Apply converts fractional column/row coordinates to map coordinates.
func (t Affine) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// CellCenter returns the map coordinates of the center of cell (col, row).
func (t Affine) CellCenter(col, row int) (x, y float64) {
	return t.Apply(float64(col)+0.5, float64(row)+0.5)
}

// WorldToCell converts map coordinates to fractional column/row
// coordinates by inverting the transform. Returns NaN coordinates for a
// degenerate (zero determinant) transform.
func (t Affine) WorldToCell(x, y float64) (col, row float64) {
	det := t.A*t.E - t.B*t.D
	if det == 0 {
		return math.NaN(), math.NaN()
	}
	dx, dy := x-t.C, y-t.F
	return (t.E*dx - t.B*dy) / det, (t.A*dy - t.D*dx) / det
}

// PixelWidth returns the absolute width of one pixel in map units.
func (t Affine) PixelWidth() float64 { return math.Abs(t.A) }

// PixelHeight returns the absolute height of one pixel in map units.
func (t Affine) PixelHeight() float64 { return math.Abs(t.E) }
