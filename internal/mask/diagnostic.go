package mask

import "github.com/sells-group/coastline-cli/internal/raster"

// Diagnostic raster class codes. Later rules overwrite earlier ones, so
// listing order encodes precedence.
const (
	ClassReliable      int8 = 0
	ClassOutsideBuffer int8 = 1
	ClassWaterbody     int8 = 3
	ClassTidal         int8 = 4
	ClassLowObs        int8 = 5
)

// classRule pairs a pixel predicate with the class code it assigns.
type classRule struct {
	apply *raster.Mask
	code  int8
}

// BuildDiagnostic composes the categorical diagnostic raster from the
// pipeline masks. Rules are applied in fixed order over a zero (reliable)
// base, so each pixel ends with exactly one class and re-running with
// identical inputs is byte-identical.
func BuildDiagnostic(coastal, persistentStdev, persistentLowObs, waterbody *raster.Mask, transform raster.Affine, crs string) *raster.Int8Grid {
	rules := []classRule{
		{coastal.Not(), ClassOutsideBuffer},
		{persistentStdev.And(coastal), ClassTidal},
		{persistentLowObs.And(coastal), ClassLowObs},
		{waterbody.And(coastal), ClassWaterbody},
	}

	out := raster.NewInt8Grid(coastal.Width, coastal.Height, transform, crs)
	for _, r := range rules {
		for i, v := range r.apply.Data {
			if v {
				out.Data[i] = r.code
			}
		}
	}
	return out
}
