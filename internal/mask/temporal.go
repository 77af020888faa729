package mask

import "github.com/sells-group/coastline-cli/internal/raster"

// TemporalFilter suppresses land blobs with no land presence in the
// immediately preceding or following time step. Noise (clouds, white
// water, sensor artifacts) appears randomly in single years; true land
// persists across neighbouring years.
//
// The returned masks are true everywhere except cells belonging to a
// dropped blob, so they can be ANDed with other per-year masks.
func TemporalFilter(land []*raster.Mask, conn raster.Connectivity) []*raster.Mask {
	out := make([]*raster.Mask, len(land))
	for i, yearLand := range land {
		neighbours := neighbourUnion(land, i)
		out[i] = filterYear(yearLand, neighbours, conn)
	}
	return out
}

// neighbourUnion returns the OR of the previous and next year's land
// masks, zero-filled at the series boundaries.
func neighbourUnion(land []*raster.Mask, i int) *raster.Mask {
	u := raster.NewMask(land[i].Width, land[i].Height)
	if i > 0 {
		u = u.Or(land[i-1])
	}
	if i < len(land)-1 {
		u = u.Or(land[i+1])
	}
	return u
}

// filterYear labels the land blobs of one year and drops every blob with
// zero overlap against the neighbour mask. Labelling and overlap lookup
// are two independent passes.
func filterYear(land, neighbours *raster.Mask, conn raster.Connectivity) *raster.Mask {
	labels, n := raster.Label(land, conn)

	overlap := make([]bool, n+1)
	for i, l := range labels {
		if l > 0 && neighbours.Data[i] {
			overlap[l] = true
		}
	}

	out := raster.NewMask(land.Width, land.Height)
	for i := range out.Data {
		l := labels[i]
		out.Data[i] = l == 0 || overlap[l]
	}
	return out
}
