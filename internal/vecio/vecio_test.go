package vecio

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/coastline-cli/internal/mask"
	"github.com/sells-group/coastline-cli/internal/model"
	"github.com/sells-group/coastline-cli/internal/raster"
)

func writePointShapefile(t *testing.T, path string, pts []shp.Point) {
	t.Helper()
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	defer w.Close()
	w.SetFields([]shp.Field{shp.StringField("name", 10)})
	for row := range pts {
		w.Write(&pts[row])
		require.NoError(t, w.WriteAttribute(row, 0, "seed"))
	}
}

func squareParts(x0, y0, x1, y1 float64) [][]shp.Point {
	return [][]shp.Point{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}
}

func TestReadSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.shp")
	writePointShapefile(t, path, []shp.Point{
		{X: 10, Y: 20},
		{X: 500, Y: 500},
	})

	seeds, err := ReadSeeds(path, Extent{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100})
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, mask.Seed{X: 10, Y: 20}, seeds[0])

	// Zero extent keeps everything.
	all, err := ReadSeeds(path, Extent{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReadWaterbodies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "water.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("FEATURETYPE", 30),
		shp.StringField("PERENNIALITY", 20),
	})
	rows := []struct{ ftype, peren string }{
		{"Estuary", ""},
		{"Lake", "Perennial"},
		{"Lake", "Non-Perennial"},
		{"Town Rural Storage", ""},
	}
	for row, r := range rows {
		w.Write((*shp.Polygon)(shp.NewPolyLine(squareParts(0, 0, 10, 10))))
		require.NoError(t, w.WriteAttribute(row, 0, r.ftype))
		require.NoError(t, w.WriteAttribute(row, 1, r.peren))
	}
	w.Close()

	feats, err := ReadWaterbodies(path, Extent{})
	require.NoError(t, err)
	require.Len(t, feats, 2) // estuary + perennial lake
	for _, f := range feats {
		assert.Equal(t, mask.WaterbodyBase, f.Kind)
		require.NotNil(t, f.Geometry)
	}
}

func TestReadWaterbodyModifications(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mods.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("type", 10)})
	for row, typ := range []string{"add", "remove", "other"} {
		w.Write((*shp.Polygon)(shp.NewPolyLine(squareParts(0, 0, 5, 5))))
		require.NoError(t, w.WriteAttribute(row, 0, typ))
	}
	w.Close()

	feats, err := ReadWaterbodyModifications(path, Extent{})
	require.NoError(t, err)
	require.Len(t, feats, 2)
	assert.Equal(t, mask.WaterbodyAdd, feats[0].Kind)
	assert.Equal(t, mask.WaterbodyRemove, feats[1].Kind)
}

func TestReadShoreClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartline.shp")
	w, err := shp.Create(path, shp.POLYLINE)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("INTERTD1_V", 50),
		shp.StringField("INTERTD2_V", 50),
	})
	w.Write(shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}, {X: 10, Y: 0}}}))
	require.NoError(t, w.WriteAttribute(0, 0, "Hard bedrock shore"))
	require.NoError(t, w.WriteAttribute(0, 1, "Unclassified"))
	w.Close()

	feats, err := ReadShoreClasses(path, Extent{})
	require.NoError(t, err)
	require.Len(t, feats, 1)
	assert.Equal(t, "Hard bedrock shore", feats[0].Class1)
	assert.Equal(t, "Unclassified", feats[0].Class2)
	assert.Equal(t, 1, feats[0].Geometry.NumLineStrings())
}

func TestReadMissingFieldFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("name", 10)})
	w.Write((*shp.Polygon)(shp.NewPolyLine(squareParts(0, 0, 5, 5))))
	require.NoError(t, w.WriteAttribute(0, 0, "x"))
	w.Close()

	_, err = ReadWaterbodies(path, Extent{})
	assert.ErrorContains(t, err, "FEATURETYPE")
	_, err = ReadWaterbodyModifications(path, Extent{})
	assert.ErrorContains(t, err, "type field")
}

func testSegment(year int, cert model.Certainty) model.ShorelineSegment {
	ml := geom.NewMultiLineString(geom.XY)
	_ = ml.Push(geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {10, 0}, {20, 5}}))
	return model.ShorelineSegment{Year: year, Certainty: cert, Maturity: "final", Geometry: ml}
}

func TestWriteContoursSHPRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contours.shp")
	segs := []model.ShorelineSegment{
		testSegment(1990, model.CertaintyGood),
		testSegment(1991, model.CertaintyTidal),
	}
	require.NoError(t, WriteContoursSHP(path, segs))

	reader, err := shp.Open(path)
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck

	yearIdx := fieldIndex(reader, "year")
	certIdx := fieldIndex(reader, "certainty")
	require.GreaterOrEqual(t, yearIdx, 0)
	require.GreaterOrEqual(t, certIdx, 0)

	var years, certs []string
	for reader.Next() {
		_, shape := reader.Shape()
		pl, ok := shape.(*shp.PolyLine)
		require.True(t, ok)
		assert.Equal(t, int32(1), pl.NumParts)
		years = append(years, attribute(reader, yearIdx))
		certs = append(certs, attribute(reader, certIdx))
	}
	assert.Equal(t, []string{"1990", "1991"}, years)
	assert.Equal(t, []string{"good", "tidal issues"}, certs)
}

func testPoint() *model.ReferencePoint {
	return &model.ReferencePoint{
		X: 100, Y: 200,
		Distances: map[int]float64{1990: 0.0, 1991: -12.5, 1992: math.NaN()},
		Regressions: map[string]model.RegressionResult{
			"time": {Slope: 1.25, Intercept: -3.5, PValue: 0.042, StdErr: 0.5, Outliers: "1992"},
			"soi":  {Slope: 0.1, Intercept: 0.2, PValue: 0.9, StdErr: 1.1},
		},
		Stats: model.PointStats{
			ValidObs: 2, ValidSpan: 2, SCE: 12.5, NSM: -12.5, MaxYear: 1990, MinYear: 1991,
		},
	}
}

func TestWritePointsSHP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.shp")
	schema := NewPointsSchema([]int{1990, 1991, 1992}, []string{"soi", "time"})
	assert.Equal(t, []string{"time", "soi"}, schema.Regressors)

	require.NoError(t, WritePointsSHP(path, []*model.ReferencePoint{testPoint()}, schema))

	reader, err := shp.Open(path)
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck

	rateIdx := fieldIndex(reader, "rate_time")
	outlIdx := fieldIndex(reader, "outl_time")
	distIdx := fieldIndex(reader, "dist_1992")
	obsIdx := fieldIndex(reader, "valid_obs")
	require.GreaterOrEqual(t, rateIdx, 0)
	require.GreaterOrEqual(t, distIdx, 0)

	require.True(t, reader.Next())
	_, shape := reader.Shape()
	p, ok := shape.(*shp.Point)
	require.True(t, ok)
	assert.Equal(t, 100.0, p.X)

	assert.Equal(t, "1.25", attribute(reader, rateIdx))
	assert.Equal(t, "1992", attribute(reader, outlIdx))
	// NaN distances are written as empty cells.
	assert.Equal(t, "", attribute(reader, distIdx))
	assert.Equal(t, "2", attribute(reader, obsIdx))
}

func TestWritePointsSHPLargeMagnitudes(t *testing.T) {
	// Projected-CRS attribute magnitudes: intercepts on the order of
	// slope*year and distances in the hundreds of kilometres must fit
	// the DBF field widths.
	pt := &model.ReferencePoint{
		X: 1953200, Y: -4386400,
		Distances: map[int]float64{2019: -121200.12, 2020: 345678.9},
		Regressions: map[string]model.RegressionResult{
			"time": {Slope: 60, Intercept: -121200, PValue: 0.001, StdErr: 1234.567},
		},
		Stats: model.PointStats{
			ValidObs: 2, ValidSpan: 2, SCE: 466879.02, NSM: 121200.12, MaxYear: 2020, MinYear: 2019,
		},
	}
	path := filepath.Join(t.TempDir(), "rates.shp")
	schema := NewPointsSchema([]int{2019, 2020}, []string{"time"})
	require.NoError(t, WritePointsSHP(path, []*model.ReferencePoint{pt}, schema))

	reader, err := shp.Open(path)
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck

	incptIdx := fieldIndex(reader, "incpt_time")
	distIdx := fieldIndex(reader, "dist_2019")
	require.GreaterOrEqual(t, incptIdx, 0)
	require.GreaterOrEqual(t, distIdx, 0)

	require.True(t, reader.Next())
	assert.Equal(t, "-121200.00", attribute(reader, incptIdx))
	assert.Equal(t, "-121200.12", attribute(reader, distIdx))
}

func TestWritePointsGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.geojson")
	schema := NewPointsSchema([]int{1990, 1991, 1992}, []string{"time", "soi"})

	require.NoError(t, WritePointsGeoJSON(path, []*model.ReferencePoint{testPoint()}, schema))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)

	props := fc.Features[0].Properties
	assert.InDelta(t, 1.25, props["rate_time"].(float64), 1e-9)
	assert.InDelta(t, -12.5, props["dist_1991"].(float64), 1e-9)
	// NaN distance omitted from JSON.
	_, present := props["dist_1992"]
	assert.False(t, present)
}

func TestWriteContoursGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contours.geojson")
	require.NoError(t, WriteContoursGeoJSON(path, []model.ShorelineSegment{
		testSegment(1990, model.CertaintyGood),
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "good", fc.Features[0].Properties["certainty"])
	assert.Equal(t, "final", fc.Features[0].Properties["maturity"])
}

var testTransform = raster.Affine{A: 30, C: 1000, E: -30, F: 5000}

func TestGridRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.bin")
	g := raster.NewGrid(4, 3, testTransform, "EPSG:3577")
	g.Set(0, 0, 1.5)
	g.Set(3, 2, -2.25)

	require.NoError(t, WriteGrid(path, g))

	got, err := ReadGrid(path)
	require.NoError(t, err)
	assert.Equal(t, g.Width, got.Width)
	assert.Equal(t, g.Height, got.Height)
	assert.Equal(t, g.Transform, got.Transform)
	assert.Equal(t, "EPSG:3577", got.CRS)
	assert.Equal(t, 1.5, got.At(0, 0))
	assert.Equal(t, -2.25, got.At(3, 2))
	assert.True(t, math.IsNaN(got.At(1, 1)))
}

func TestDiagnosticRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.bin")
	g := raster.NewInt8Grid(3, 3, testTransform, "EPSG:3577")
	g.Set(1, 1, 4)
	g.Set(2, 2, 5)

	require.NoError(t, WriteDiagnostic(path, g))

	got, err := ReadDiagnostic(path)
	require.NoError(t, err)
	assert.Equal(t, int8(4), got.At(1, 1))
	assert.Equal(t, int8(5), got.At(2, 2))
	assert.Equal(t, int8(0), got.At(0, 0))
}

func writeStackDir(t *testing.T, dir string, years []int, gapfill bool) {
	t.Helper()
	for _, year := range years {
		for _, v := range []string{"mndwi", "tide_m", "count", "stdev"} {
			g := raster.NewGrid(2, 2, testTransform, "EPSG:3577")
			g.Set(0, 0, float64(year))
			require.NoError(t, WriteGrid(filepath.Join(dir, fileName(year, v, "")), g))
			if gapfill {
				require.NoError(t, WriteGrid(filepath.Join(dir, fileName(year, v, "_gapfill")), g))
			}
		}
	}
}

func fileName(year int, v, suffix string) string {
	return fmt.Sprintf("%d_%s%s.bin", year, v, suffix)
}

func TestLoadStacks(t *testing.T) {
	dir := t.TempDir()
	writeStackDir(t, dir, []int{1991, 1990}, true)

	yearly, gapfill, err := LoadStacks(dir, "mndwi")
	require.NoError(t, err)
	assert.Equal(t, []int{1990, 1991}, yearly.Years())
	require.NotNil(t, gapfill)
	assert.Equal(t, []int{1990, 1991}, gapfill.Years())
	assert.Equal(t, 1990.0, yearly.Layer(1990).Index.At(0, 0))
}

func TestLoadStacksNoGapfill(t *testing.T) {
	dir := t.TempDir()
	writeStackDir(t, dir, []int{2000}, false)

	yearly, gapfill, err := LoadStacks(dir, "mndwi")
	require.NoError(t, err)
	require.NotNil(t, yearly)
	assert.Nil(t, gapfill)
}

func TestLoadStacksNoData(t *testing.T) {
	_, _, err := LoadStacks(t.TempDir(), "mndwi")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoData))
}

func TestLoadStacksMissingVariable(t *testing.T) {
	dir := t.TempDir()
	g := raster.NewGrid(2, 2, testTransform, "")
	require.NoError(t, WriteGrid(filepath.Join(dir, "1990_mndwi.bin"), g))

	_, _, err := LoadStacks(dir, "mndwi")
	assert.Error(t, err)
}
