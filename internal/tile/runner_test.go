package tile

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coastline-cli/internal/config"
	"github.com/sells-group/coastline-cli/internal/model"
	"github.com/sells-group/coastline-cli/internal/raster"
	"github.com/sells-group/coastline-cli/internal/store"
	"github.com/sells-group/coastline-cli/internal/vecio"
)

// The synthetic tile is 20x20 cells of 30-unit pixels: a vertical
// shoreline with land on the left. Between 2019 and 2020 the land
// extends two pixels seaward, so every reference point should see the
// 2019 shoreline 60 units landward of the baseline.
var testTransform = raster.Affine{A: 30, E: -30}

const testCRS = "EPSG:3577"

// constGrid fills a grid with a single value.
func constGrid(v float64) *raster.Grid {
	g := raster.NewGrid(20, 20, testTransform, testCRS)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// shorelineGrid is land (-1) left of waterCol and water (+1) from it on.
func shorelineGrid(waterCol int) *raster.Grid {
	g := raster.NewGrid(20, 20, testTransform, testCRS)
	for row := 0; row < 20; row++ {
		for col := 0; col < 20; col++ {
			if col < waterCol {
				g.Set(col, row, -1)
			} else {
				g.Set(col, row, 1)
			}
		}
	}
	return g
}

func writeYear(t *testing.T, dir string, year int, index *raster.Grid) {
	t.Helper()
	grids := map[string]*raster.Grid{
		"mndwi":  index,
		"tide_m": constGrid(0),
		"count":  constGrid(10),
		"stdev":  constGrid(0.1),
	}
	for name, g := range grids {
		path := filepath.Join(dir, fmt.Sprintf("%d_%s.bin", year, name))
		require.NoError(t, vecio.WriteGrid(path, g))
	}
}

func writeSeedShapefile(t *testing.T, path string, x, y float64) {
	t.Helper()
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("NAME", 10)})
	w.Write(&shp.Point{X: x, Y: y})
	w.WriteAttribute(0, 0, "seed")
	w.Close()
}

func testParams(t *testing.T) Params {
	t.Helper()
	root := t.TempDir()
	rasterDir := filepath.Join(root, "rasters")
	tileDir := filepath.Join(rasterDir, "tile1")
	require.NoError(t, os.MkdirAll(tileDir, 0o755))

	writeYear(t, tileDir, 2019, shorelineGrid(10))
	writeYear(t, tileDir, 2020, shorelineGrid(12))

	seeds := filepath.Join(root, "seeds.shp")
	writeSeedShapefile(t, seeds, 550, -300)

	return Params{
		StudyArea:    "tile1",
		RasterDir:    rasterDir,
		OutputDir:    filepath.Join(root, "vectors"),
		SeedsPath:    seeds,
		WaterIndex:   "mndwi",
		BaselineYear: 2020,
		InitialYear:  1988,
		PointSpacing: 30,
		MaxValidDist: 1000,
		Workers:      4,
		Climate: map[string]model.ClimateSeries{
			"soi": {2019: 1.0, 2020: -1.0},
		},
		DetrendClimate: true,
	}
}

func TestRunEndToEnd(t *testing.T) {
	p := testParams(t)

	res, err := Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []int{2019, 2020}, res.Years)
	assert.Empty(t, res.FailedYears)
	require.NotEmpty(t, res.Points)

	for _, pt := range res.Points {
		assert.InDelta(t, 0.0, pt.Distances[2020], 1e-9)
		assert.InDelta(t, -60.0, pt.Distances[2019], 0.01)

		timeFit := pt.Regressions["time"]
		// Two observations 60 units apart one year apart: 60 units/year.
		assert.InDelta(t, 60.0, timeFit.Slope, 0.01)
		assert.Empty(t, timeFit.Outliers)

		// The detrended series is identically zero, so the climate fit
		// finds no residual signal.
		soiFit := pt.Regressions["soi"]
		assert.InDelta(t, 0.0, soiFit.Slope, 1e-6)

		assert.Equal(t, 2, pt.Stats.ValidObs)
		// Inclusive span: 2020 - 2019 + 1.
		assert.Equal(t, 2, pt.Stats.ValidSpan)
		assert.InDelta(t, 60.0, pt.Stats.SCE, 0.01)
		assert.InDelta(t, 60.0, pt.Stats.NSM, 0.01)
		assert.Equal(t, 2020, pt.Stats.MaxYear)
		assert.Equal(t, 2019, pt.Stats.MinYear)
	}

	require.Len(t, res.Segments, 2)
	for _, seg := range res.Segments {
		assert.Equal(t, model.CertaintyGood, seg.Certainty)
		if seg.Year == 2020 {
			assert.Equal(t, "interim", seg.Maturity)
		} else {
			assert.Equal(t, "final", seg.Maturity)
		}
	}

	require.Len(t, res.Outputs, 5)
	for _, path := range res.Outputs {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	diagPath := filepath.Join(p.OutputDir, "tile1", "certainty_diagnostic.bin")
	diag, err := vecio.ReadDiagnostic(diagPath)
	require.NoError(t, err)
	assert.Equal(t, 20, diag.Width)
	assert.Equal(t, 20, diag.Height)
}

func TestRunMissingRasters(t *testing.T) {
	p := testParams(t)
	p.StudyArea = "nowhere"

	_, err := Run(context.Background(), p)
	require.Error(t, err)
	assert.True(t, eris.Is(err, vecio.ErrNoData))
}

func TestRunMissingBaselineYear(t *testing.T) {
	p := testParams(t)
	p.BaselineYear = 1999

	_, err := Run(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseline year 1999")
}

func TestRunCanceledContext(t *testing.T) {
	p := testParams(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, p)
	require.Error(t, err)
}

// fakeStore records run bookkeeping calls.
type fakeStore struct {
	created   int
	completed int
	failed    int
	saved     int
	points    int
	failErr   error
}

func (f *fakeStore) CreateRun(_ context.Context, studyArea, rv, vv string) (*store.Run, error) {
	f.created++
	return &store.Run{ID: "run-1", StudyArea: studyArea, RasterVersion: rv, VectorVersion: vv}, nil
}

func (f *fakeStore) CompleteRun(_ context.Context, _ string, points, _ int) error {
	f.completed++
	f.points = points
	return nil
}

func (f *fakeStore) FailRun(_ context.Context, _ string, cause error) error {
	f.failed++
	f.failErr = cause
	return nil
}

func (f *fakeStore) GetRun(context.Context, string) (*store.Run, error) { return nil, nil }

func (f *fakeStore) ListRuns(context.Context, store.RunFilter) ([]store.Run, error) {
	return nil, nil
}

func (f *fakeStore) SavePoints(_ context.Context, _ string, pts []*model.ReferencePoint) error {
	f.saved = len(pts)
	return nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func TestRunRecordsSuccess(t *testing.T) {
	p := testParams(t)
	fs := &fakeStore{}
	p.Store = fs
	p.RasterVersion = "v2.1"
	p.VectorVersion = "v2.1"

	res, err := Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 1, fs.created)
	assert.Equal(t, 1, fs.completed)
	assert.Zero(t, fs.failed)
	assert.Equal(t, len(res.Points), fs.saved)
	assert.Equal(t, len(res.Points), fs.points)
}

func TestRunRecordsFailure(t *testing.T) {
	p := testParams(t)
	p.StudyArea = "nowhere"
	fs := &fakeStore{}
	p.Store = fs

	_, err := Run(context.Background(), p)
	require.Error(t, err)

	assert.Equal(t, 1, fs.created)
	assert.Equal(t, 1, fs.failed)
	assert.Zero(t, fs.completed)
	assert.True(t, eris.Is(fs.failErr, vecio.ErrNoData))
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Paths.RasterDir = "r"
	cfg.Paths.OutputDir = "o"
	cfg.Paths.Seeds = "s.shp"
	cfg.Analysis.WaterIndex = "mndwi"
	cfg.Analysis.BaselineYear = 2021
	cfg.Analysis.PointSpacing = 15
	cfg.Analysis.MinVertices = 12
	cfg.Analysis.OceanConnectivity = 8
	cfg.Analysis.OceanDilation = 2
	cfg.Analysis.MADThreshold = 3.0
	cfg.Analysis.Workers = 3
	cfg.Climate.Detrend = true

	p := FromConfig(cfg, "tile9")
	assert.Equal(t, "tile9", p.StudyArea)
	assert.Equal(t, "r", p.RasterDir)
	assert.Equal(t, "s.shp", p.SeedsPath)
	assert.Equal(t, 2021, p.BaselineYear)
	assert.Equal(t, 15.0, p.PointSpacing)
	assert.Equal(t, 12, p.MinVertices)
	assert.Equal(t, raster.Conn8, p.Ocean.Connectivity)
	assert.Equal(t, 2, p.Ocean.Dilation)
	assert.InDelta(t, 3.0, p.MADThreshold, 1e-9)
	assert.Equal(t, 3, p.Workers)
	assert.True(t, p.DetrendClimate)
}

func TestRegressorNames(t *testing.T) {
	p := Params{Climate: map[string]model.ClimateSeries{"pdo": {}, "soi": {}}}
	assert.Equal(t, []string{"time", "pdo", "soi"}, regressorNames(p))
}

func TestStackExtentCoversGrid(t *testing.T) {
	g := shorelineGrid(10)
	stack, err := raster.NewStack([]raster.Layer{{
		Year: 2020, Index: g, Tide: constGrid(0), Count: constGrid(10), Stdev: constGrid(0.1),
	}})
	require.NoError(t, err)

	ext := stackExtent(stack)
	assert.Equal(t, 0.0, ext.MinX)
	assert.Equal(t, 600.0, ext.MaxX)
	assert.Equal(t, -600.0, ext.MinY)
	assert.Equal(t, 0.0, ext.MaxY)
	assert.False(t, math.IsNaN(ext.MinX))
}
