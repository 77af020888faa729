package vecio

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/coastline-cli/internal/model"
)

// WriteContoursGeoJSON writes the annual shoreline segments as a
// GeoJSON feature collection.
func WriteContoursGeoJSON(path string, segments []model.ShorelineSegment) error {
	fc := geojson.FeatureCollection{}
	for _, s := range segments {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: s.Geometry,
			Properties: map[string]any{
				"year":      s.Year,
				"certainty": string(s.Certainty),
				"maturity":  s.Maturity,
			},
		})
	}
	return writeJSON(path, &fc)
}

// WritePointsGeoJSON writes the rates-of-change points as a GeoJSON
// feature collection with the same attributes as the shapefile writer.
// NaN values are omitted since JSON cannot carry them.
func WritePointsGeoJSON(path string, pts []*model.ReferencePoint, schema PointsSchema) error {
	fc := geojson.FeatureCollection{}
	for _, p := range pts {
		props := map[string]any{
			"valid_obs":  p.Stats.ValidObs,
			"valid_span": p.Stats.ValidSpan,
			"max_year":   p.Stats.MaxYear,
			"min_year":   p.Stats.MinYear,
		}
		setFloat(props, "sce", p.Stats.SCE)
		setFloat(props, "nsm", p.Stats.NSM)
		for _, r := range schema.Regressors {
			reg := p.Regressions[r]
			setFloat(props, "rate_"+r, reg.Slope)
			setFloat(props, "incpt_"+r, reg.Intercept)
			setFloat(props, "sig_"+r, reg.PValue)
			setFloat(props, "se_"+r, reg.StdErr)
			props["outl_"+r] = reg.Outliers
		}
		for _, y := range schema.Years {
			if d, ok := p.Distances[y]; ok {
				setFloat(props, fmt.Sprintf("dist_%d", y), d)
			}
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}),
			Properties: props,
		})
	}
	return writeJSON(path, &fc)
}

func setFloat(props map[string]any, key string, v float64) {
	if math.IsNaN(v) {
		return
	}
	props[key] = v
}

func writeJSON(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrapf(err, "vecio: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "vecio: write %s", path)
	}
	return nil
}
