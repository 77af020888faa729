package vecio

import (
	"fmt"
	"math"
	"sort"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/coastline-cli/internal/model"
)

// PointsSchema drives the rates-of-change attribute table: one distance
// column per year and one regression column group per regressor, in
// order. Regressor names are short ("time", "soi") because DBF field
// names cap at ten characters.
type PointsSchema struct {
	Years      []int
	Regressors []string
}

// NewPointsSchema builds a schema from the analysis years and the
// regressors present on the points, "time" first.
func NewPointsSchema(years []int, regressors []string) PointsSchema {
	ys := append([]int(nil), years...)
	sort.Ints(ys)

	rs := make([]string, 0, len(regressors))
	for _, r := range regressors {
		if r != "time" {
			rs = append(rs, r)
		}
	}
	sort.Strings(rs)
	return PointsSchema{Years: ys, Regressors: append([]string{"time"}, rs...)}
}

// WriteContoursSHP writes the annual shoreline segments to an ESRI
// shapefile with year, certainty and maturity attributes.
func WriteContoursSHP(path string, segments []model.ShorelineSegment) error {
	w, err := shp.Create(path, shp.POLYLINE)
	if err != nil {
		return eris.Wrapf(err, "vecio: create contours %s", path)
	}
	defer w.Close()

	w.SetFields([]shp.Field{
		shp.NumberField("year", 4),
		shp.StringField("certainty", 20),
		shp.StringField("maturity", 10),
	})

	for row, s := range segments {
		w.Write(multiLineToPolyLine(s.Geometry))
		if err := writeAttrs(w, row,
			s.Year, string(s.Certainty), s.Maturity); err != nil {
			return eris.Wrapf(err, "vecio: contours %s row %d", path, row)
		}
	}
	return nil
}

// WritePointsSHP writes the rates-of-change points to an ESRI
// shapefile. Rates and distances carry two decimals, significance and
// standard errors three, matching the published product.
func WritePointsSHP(path string, pts []*model.ReferencePoint, schema PointsSchema) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "vecio: create points %s", path)
	}
	defer w.Close()

	var fields []shp.Field
	for _, r := range schema.Regressors {
		fields = append(fields,
			shp.FloatField("rate_"+r, 19, 2),
			shp.FloatField("incpt_"+r, 19, 2),
			shp.FloatField("sig_"+r, 19, 3),
			shp.FloatField("se_"+r, 19, 3),
			shp.StringField("outl_"+r, 80),
		)
	}
	for _, y := range schema.Years {
		fields = append(fields, shp.FloatField(fmt.Sprintf("dist_%d", y), 19, 2))
	}
	fields = append(fields,
		shp.NumberField("valid_obs", 4),
		shp.NumberField("valid_span", 4),
		shp.FloatField("sce", 19, 2),
		shp.FloatField("nsm", 19, 2),
		shp.NumberField("max_year", 4),
		shp.NumberField("min_year", 4),
	)
	w.SetFields(fields)

	for row, p := range pts {
		w.Write(&shp.Point{X: p.X, Y: p.Y})
		if err := writeAttrs(w, row, pointAttrs(p, schema)...); err != nil {
			return eris.Wrapf(err, "vecio: points %s row %d", path, row)
		}
	}
	return nil
}

// pointAttrs flattens one point into the schema's column order.
func pointAttrs(p *model.ReferencePoint, schema PointsSchema) []any {
	var attrs []any
	for _, r := range schema.Regressors {
		reg := p.Regressions[r]
		attrs = append(attrs, reg.Slope, reg.Intercept, reg.PValue, reg.StdErr, reg.Outliers)
	}
	for _, y := range schema.Years {
		d, ok := p.Distances[y]
		if !ok {
			d = math.NaN()
		}
		attrs = append(attrs, d)
	}
	attrs = append(attrs,
		p.Stats.ValidObs, p.Stats.ValidSpan,
		p.Stats.SCE, p.Stats.NSM,
		p.Stats.MaxYear, p.Stats.MinYear,
	)
	return attrs
}

// writeAttrs writes one row of attributes, leaving NaN numeric cells
// empty the way OGR drivers do.
func writeAttrs(w *shp.Writer, row int, attrs ...any) error {
	for col, v := range attrs {
		if f, ok := v.(float64); ok && math.IsNaN(f) {
			v = ""
		}
		if err := w.WriteAttribute(row, col, v); err != nil {
			return eris.Wrapf(err, "write attribute %d", col)
		}
	}
	return nil
}

// multiLineToPolyLine converts a go-geom multi-line into a shapefile
// polyline, one part per linestring.
func multiLineToPolyLine(ml *geom.MultiLineString) *shp.PolyLine {
	parts := make([][]shp.Point, 0, ml.NumLineStrings())
	for i := 0; i < ml.NumLineStrings(); i++ {
		ls := ml.LineString(i)
		part := make([]shp.Point, ls.NumCoords())
		for j := 0; j < ls.NumCoords(); j++ {
			c := ls.Coord(j)
			part[j] = shp.Point{X: c[0], Y: c[1]}
		}
		parts = append(parts, part)
	}
	return shp.NewPolyLine(parts)
}
