package points

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/coastline-cli/internal/model"
)

// rockyClasses is the fixed vocabulary of rock-type labels from the
// coastal classification dataset. Points next to these segments sit on
// shorelines where the sub-pixel movement signal is not meaningful.
var rockyClasses = map[string]bool{
	"Bedrock breakdown debris (cobbles/boulders)": true,
	"Boulder (rock) beach":                        true,
	"Cliff (>5m) (undiff)":                        true,
	"Colluvium (talus) undiff":                    true,
	"Flat boulder deposit (rock) undiff":          true,
	"Hard bedrock shore":                          true,
	"Hard bedrock shore inferred":                 true,
	"Hard rock cliff (>5m)":                       true,
	"Hard rocky shore platform":                   true,
	"Rocky shore (undiff)":                        true,
	"Rocky shore platform (undiff)":               true,
	"Sloping hard rock shore":                     true,
	"Sloping rocky shore (undiff)":                true,
	"Soft `bedrock¿ cliff (>5m)":                  true, // literal ` and ¿ in the source dataset
	"Steep boulder talus":                         true,
}

// ShoreClassFeature is one classified segment from the coastal
// classification collaborator, with its primary and secondary intertidal
// class labels.
type ShoreClassFeature struct {
	Geometry *geom.MultiLineString
	Class1   string
	Class2   string
}

// rocky reports whether a feature is classified rocky: the primary class
// must be rocky, the secondary rocky or unclassified. This is deliberately
// conservative so mixed shorelines keep their points.
func (f ShoreClassFeature) rocky() bool {
	return rockyClasses[f.Class1] && (rockyClasses[f.Class2] || f.Class2 == "Unclassified")
}

// RockyShoreClip removes reference points within buffer distance of a
// rocky segment unless they are also within buffer distance of a
// non-rocky segment. With no rocky features present the points pass
// through unchanged; with no non-rocky features at all, nil is returned
// and the caller skips point statistics for the tile.
func RockyShoreClip(pts []*model.ReferencePoint, features []ShoreClassFeature, buffer float64) []*model.ReferencePoint {
	var rockyFeats, cleanFeats []ShoreClassFeature
	for _, f := range features {
		if f.rocky() {
			rockyFeats = append(rockyFeats, f)
		} else {
			cleanFeats = append(cleanFeats, f)
		}
	}

	if len(cleanFeats) == 0 && len(rockyFeats) > 0 {
		return nil
	}
	if len(rockyFeats) == 0 {
		return pts
	}

	var kept []*model.ReferencePoint
	for _, pt := range pts {
		if withinAny(pt.X, pt.Y, rockyFeats, buffer) && !withinAny(pt.X, pt.Y, cleanFeats, buffer) {
			continue
		}
		kept = append(kept, pt)
	}
	return kept
}

func withinAny(x, y float64, features []ShoreClassFeature, buffer float64) bool {
	for _, f := range features {
		if _, _, d := NearestOnLine(x, y, f.Geometry); d <= buffer {
			return true
		}
	}
	return false
}
