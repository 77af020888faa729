// Package mask implements the coastal-zone masking pipeline: ocean
// connectivity from seed points, the temporal contiguity filter, the
// coastal buffer composer and the categorical diagnostic raster.
package mask

import (
	"github.com/sells-group/coastline-cli/internal/raster"
)

// Seed is a point in the analysis CRS known to lie in open water. Seeds
// anchor the connectivity analysis that separates ocean from inland water.
type Seed struct {
	X, Y float64
}

// OceanOptions tunes the connectivity mask builder. The historical
// pipelines disagreed on connectivity and dilation, so both are
// parameters rather than constants.
type OceanOptions struct {
	// Connectivity is the pixel-adjacency rule for water labelling.
	Connectivity raster.Connectivity
	// Dilation extends the ocean mask by this many pixels onto the land
	// side so contour extraction has data on both sides of the threshold.
	// Zero disables dilation.
	Dilation int
}

// DefaultOceanOptions matches the production parameters for annual masks.
func DefaultOceanOptions() OceanOptions {
	return OceanOptions{Connectivity: raster.Conn4, Dilation: 3}
}

// Ocean returns the subset of water pixels in land (true = land, false =
// water) that are connected to at least one seed point. Seeds falling
// off-grid or on land are ignored. If no seed hits a water component the
// returned mask is empty.
func Ocean(land *raster.Mask, transform raster.Affine, seeds []Seed, opts OceanOptions) *raster.Mask {
	water := land.Not()
	labels, n := raster.Label(water, opts.Connectivity)

	keep := make([]bool, n+1)
	for _, s := range seeds {
		col, row, ok := raster.CellAt(land.Width, land.Height, transform, s.X, s.Y)
		if !ok {
			continue
		}
		if l := labels[row*land.Width+col]; l > 0 {
			keep[l] = true
		}
	}

	ocean := raster.NewMask(land.Width, land.Height)
	for i, l := range labels {
		if l > 0 && keep[l] {
			ocean.Data[i] = true
		}
	}

	if opts.Dilation > 0 {
		ocean = raster.Dilate(ocean, opts.Dilation)
	}
	return ocean
}

// CoastalBuffer derives the analysis zone straddling the shoreline: the
// all-time land mask is morphologically closed to exclude narrow
// channels, reduced to its ocean-connected side, then buffered
// symmetrically. The result is true within buffer pixels of the
// ocean-land boundary.
func CoastalBuffer(land *raster.Mask, transform raster.Affine, seeds []Seed, buffer, closing int, conn raster.Connectivity) *raster.Mask {
	if closing > 0 {
		land = raster.Close(land, closing)
	}

	ocean := Ocean(land, transform, seeds, OceanOptions{Connectivity: conn})

	oceanSide := raster.Dilate(ocean, buffer)
	landSide := raster.Dilate(ocean.Not(), buffer)
	return oceanSide.And(landSide)
}
