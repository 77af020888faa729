// Package tile orchestrates the shoreline-change pipeline for one study
// area: raster stack loading, coastal-zone masking, contour extraction,
// reference-point sampling, movement and regression analysis, certainty
// classification and vector export. Study areas are independent; callers
// fan tiles out across processes or goroutines as they see fit.
package tile

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/coastline-cli/internal/certainty"
	"github.com/sells-group/coastline-cli/internal/climate"
	"github.com/sells-group/coastline-cli/internal/config"
	"github.com/sells-group/coastline-cli/internal/contour"
	"github.com/sells-group/coastline-cli/internal/mask"
	"github.com/sells-group/coastline-cli/internal/model"
	"github.com/sells-group/coastline-cli/internal/points"
	"github.com/sells-group/coastline-cli/internal/raster"
	"github.com/sells-group/coastline-cli/internal/regress"
	"github.com/sells-group/coastline-cli/internal/store"
	"github.com/sells-group/coastline-cli/internal/vecio"
)

// DefaultMinVertices drops contour fragments shorter than this many
// vertices before analysis, suppressing single-cell noise.
const DefaultMinVertices = 10

const (
	maturityFinal   = "final"
	maturityInterim = "interim"
)

// Params configures one tile run. Paths to optional collaborator
// datasets (seeds, waterbodies, modifications, shore classes) may be
// empty, in which case the corresponding step is skipped.
type Params struct {
	StudyArea string

	// RasterDir is the root raster directory; the tile's grids live
	// under RasterDir/StudyArea. OutputDir is laid out the same way.
	RasterDir string
	OutputDir string

	SeedsPath         string
	WaterbodiesPath   string
	ModificationsPath string
	ShoreClassesPath  string

	WaterIndex     string
	IndexThreshold float64
	BaselineYear   int
	// InitialYear is the first year admitted to the all-time statistics.
	InitialYear  int
	BufferPixels int
	// MinVertices overrides DefaultMinVertices when positive.
	MinVertices  int
	PointSpacing float64
	MaxValidDist float64
	RockyBuffer  float64
	// AerosolNorthOfY enables the 1991/1992 aerosol override for
	// segments with centroids north of this Y. Zero disables it.
	AerosolNorthOfY float64
	// Ocean overrides the connectivity-mask options when its
	// Connectivity is set; the zero value means production defaults.
	Ocean mask.OceanOptions
	// MADThreshold overrides the outlier threshold; zero means the
	// regress package default.
	MADThreshold float64
	Workers      int

	// Climate maps regressor name to its annual series. The "time"
	// regressor is implicit and always fitted first.
	Climate map[string]model.ClimateSeries
	// DetrendClimate subtracts the fitted time trend from the distance
	// series before each climate-index fit.
	DetrendClimate bool

	// Store, when non-nil, records the run and its surviving points.
	Store         store.Store
	RasterVersion string
	VectorVersion string
}

// FromConfig builds tile parameters for one study area from the loaded
// configuration. The climate series and store are wired by the caller.
func FromConfig(cfg *config.Config, studyArea string) Params {
	return Params{
		StudyArea:         studyArea,
		RasterDir:         cfg.Paths.RasterDir,
		OutputDir:         cfg.Paths.OutputDir,
		SeedsPath:         cfg.Paths.Seeds,
		WaterbodiesPath:   cfg.Paths.Waterbodies,
		ModificationsPath: cfg.Paths.Modifications,
		ShoreClassesPath:  cfg.Paths.ShoreClasses,
		WaterIndex:        cfg.Analysis.WaterIndex,
		IndexThreshold:    cfg.Analysis.IndexThreshold,
		BaselineYear:      cfg.Analysis.BaselineYear,
		InitialYear:       cfg.Analysis.InitialYear,
		BufferPixels:      cfg.Analysis.BufferPixels,
		MinVertices:       cfg.Analysis.MinVertices,
		PointSpacing:      cfg.Analysis.PointSpacing,
		MaxValidDist:      cfg.Analysis.MaxValidDist,
		RockyBuffer:       cfg.Analysis.RockyBuffer,
		AerosolNorthOfY:   cfg.Analysis.AerosolNorthOfY,
		Ocean: mask.OceanOptions{
			Connectivity: raster.Connectivity(cfg.Analysis.OceanConnectivity),
			Dilation:     cfg.Analysis.OceanDilation,
		},
		MADThreshold:   cfg.Analysis.MADThreshold,
		Workers:        cfg.Analysis.Workers,
		DetrendClimate: cfg.Climate.Detrend,
	}
}

// Result summarizes one completed tile run.
type Result struct {
	Years       []int
	FailedYears []int
	Points      []*model.ReferencePoint
	Segments    []model.ShorelineSegment
	// Outputs lists the files written, for logging and tests.
	Outputs []string
}

// Run executes the pipeline for one tile and, when a store is
// configured, brackets it with a run record. The pipeline outcome is
// authoritative: store bookkeeping failures are logged, not returned,
// except when persisting the points themselves fails.
func Run(ctx context.Context, p Params) (*Result, error) {
	var run *store.Run
	if p.Store != nil {
		r, err := p.Store.CreateRun(ctx, p.StudyArea, p.RasterVersion, p.VectorVersion)
		if err != nil {
			return nil, eris.Wrap(err, "tile: create run record")
		}
		run = r
	}

	res, err := execute(ctx, p)
	if p.Store == nil {
		return res, err
	}

	if err != nil {
		if ferr := p.Store.FailRun(ctx, run.ID, err); ferr != nil {
			zap.L().Error("tile: failed to record run failure",
				zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return nil, err
	}

	if serr := p.Store.SavePoints(ctx, run.ID, res.Points); serr != nil {
		return res, eris.Wrap(serr, "tile: persist points")
	}
	if cerr := p.Store.CompleteRun(ctx, run.ID, len(res.Points), len(res.Segments)); cerr != nil {
		zap.L().Error("tile: failed to complete run record",
			zap.String("run_id", run.ID), zap.Error(cerr))
	}
	return res, nil
}

func execute(ctx context.Context, p Params) (*Result, error) {
	log := zap.L().With(zap.String("study_area", p.StudyArea))

	rasterDir := filepath.Join(p.RasterDir, p.StudyArea)
	yearly, gapfill, err := vecio.LoadStacks(rasterDir, p.WaterIndex)
	if err != nil {
		return nil, eris.Wrapf(err, "tile: load raster stacks for %s", p.StudyArea)
	}
	width, height := yearly.Shape()
	transform := yearly.Transform()
	ext := stackExtent(yearly)
	log.Info("tile: stacks loaded",
		zap.Ints("years", yearly.Years()),
		zap.Int("width", width), zap.Int("height", height))

	var seeds []mask.Seed
	if p.SeedsPath != "" {
		if seeds, err = vecio.ReadSeeds(p.SeedsPath, ext); err != nil {
			return nil, eris.Wrap(err, "tile: read ocean seeds")
		}
	}

	waterbody, err := waterbodyMask(p, ext, width, height, transform)
	if err != nil {
		return nil, err
	}

	mp := mask.DefaultPreprocessParams()
	mp.IndexThreshold = p.IndexThreshold
	if p.BufferPixels > 0 {
		mp.BufferPixels = p.BufferPixels
	}
	if p.Ocean.Connectivity != 0 {
		mp.Ocean = p.Ocean
	}
	mp.Seeds = seeds
	mp.Waterbody = waterbody

	zone, err := mask.Preprocess(yearly, gapfill, mp)
	if err != nil {
		return nil, eris.Wrap(err, "tile: preprocess coastal zone")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "tile: canceled")
	}

	minVerts := p.MinVertices
	if minVerts <= 0 {
		minVerts = DefaultMinVertices
	}
	contours, failed, err := contour.Extract(zone.MaskedIndex, p.IndexThreshold,
		contour.Options{MinVertices: minVerts})
	if err != nil {
		return nil, eris.Wrap(err, "tile: extract annual shorelines")
	}
	if len(failed) > 0 {
		log.Warn("tile: some years produced no shoreline", zap.Ints("years", failed))
	}

	pts, err := samplePoints(p, contours, ext)
	if err != nil {
		return nil, err
	}

	if len(pts) > 0 {
		if err := analyzePoints(ctx, p, pts, contours, zone); err != nil {
			return nil, err
		}
	} else {
		log.Warn("tile: no reference points survived; exporting shorelines only")
	}

	segments := classifySegments(p, contours, zone.Diagnostic)

	res := &Result{
		Years:       zone.Years,
		FailedYears: failed,
		Points:      pts,
		Segments:    segments,
	}
	if err := export(p, res, zone.Diagnostic); err != nil {
		return nil, err
	}

	log.Info("tile: complete",
		zap.Int("points", len(res.Points)),
		zap.Int("segments", len(res.Segments)),
		zap.Strings("outputs", res.Outputs))
	return res, nil
}

// waterbodyMask rasterizes the base waterbody features plus the add and
// remove modifications into the exclusion mask.
func waterbodyMask(p Params, ext vecio.Extent, width, height int, transform raster.Affine) (*raster.Mask, error) {
	var features []mask.WaterbodyFeature
	if p.WaterbodiesPath != "" {
		base, err := vecio.ReadWaterbodies(p.WaterbodiesPath, ext)
		if err != nil {
			return nil, eris.Wrap(err, "tile: read waterbodies")
		}
		features = append(features, base...)
	}
	if p.ModificationsPath != "" {
		mods, err := vecio.ReadWaterbodyModifications(p.ModificationsPath, ext)
		if err != nil {
			return nil, eris.Wrap(err, "tile: read waterbody modifications")
		}
		features = append(features, mods...)
	}
	if len(features) == 0 {
		return nil, nil
	}
	return mask.RasterizeWaterbodies(features, width, height, transform), nil
}

// samplePoints places reference points along the baseline shoreline and
// removes those inside rocky-shore buffers.
func samplePoints(p Params, contours map[int]*geom.MultiLineString, ext vecio.Extent) ([]*model.ReferencePoint, error) {
	baseline, ok := contours[p.BaselineYear]
	if !ok {
		return nil, eris.Errorf("tile: no shoreline for baseline year %d", p.BaselineYear)
	}

	pts := points.AlongLine(baseline, p.PointSpacing)
	if p.ShoreClassesPath == "" || len(pts) == 0 {
		return pts, nil
	}

	classes, err := vecio.ReadShoreClasses(p.ShoreClassesPath, ext)
	if err != nil {
		return nil, eris.Wrap(err, "tile: read shore classes")
	}
	clipped := points.RockyShoreClip(pts, classes, p.RockyBuffer)
	if dropped := len(pts) - len(clipped); dropped > 0 {
		zap.L().Debug("tile: rocky shore clip removed points", zap.Int("dropped", dropped))
	}
	return clipped, nil
}

// analyzePoints fills each point's distance series, fits the time and
// climate regressions and derives the all-time statistics.
func analyzePoints(ctx context.Context, p Params, pts []*model.ReferencePoint, contours map[int]*geom.MultiLineString, zone *mask.Result) error {
	err := points.AnnualMovements(ctx, pts, contours, zone.Index, points.MovementParams{
		BaselineYear: p.BaselineYear,
		MaxValidDist: p.MaxValidDist,
		Workers:      p.Workers,
	})
	if err != nil {
		return eris.Wrap(err, "tile: annual movements")
	}

	years := zone.Years
	timeXs := make([]float64, len(years))
	for i, y := range years {
		timeXs[i] = float64(y)
	}
	climateXs := make(map[string][]float64, len(p.Climate))
	for name, series := range p.Climate {
		climateXs[name] = climate.Align(series, years)
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.Workers > 0 {
		g.SetLimit(p.Workers)
	}
	for _, pt := range pts {
		pt := pt
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			regressPoint(pt, years, timeXs, climateXs, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "tile: point regressions")
	}
	return nil
}

func regressPoint(pt *model.ReferencePoint, years []int, timeXs []float64, climateXs map[string][]float64, p Params) {
	ys := make([]float64, len(years))
	for i, y := range years {
		d, ok := pt.Distances[y]
		if !ok {
			d = math.NaN()
		}
		ys[i] = d
	}

	timeFit := regress.ChangeRegress(ys, timeXs, years, regress.ChangeOptions{Threshold: p.MADThreshold})
	pt.Regressions["time"] = timeFit

	for name, xs := range climateXs {
		opts := regress.ChangeOptions{Threshold: p.MADThreshold}
		if p.DetrendClimate && !math.IsNaN(timeFit.Slope) {
			opts.Detrend = &[2]float64{timeFit.Slope, timeFit.Intercept}
		}
		pt.Regressions[name] = regress.ChangeRegress(ys, xs, years, opts)
	}

	pt.Stats = regress.AllTimeStats(pt.Distances, timeFit.Outliers, p.InitialYear)
}

// classifySegments tags each annual contour's pieces with a certainty
// label and marks the baseline year's shoreline as interim.
func classifySegments(p Params, contours map[int]*geom.MultiLineString, diag *raster.Int8Grid) []model.ShorelineSegment {
	ov := certainty.Overrides{}
	if p.AerosolNorthOfY != 0 {
		ov = certainty.DefaultOverrides(p.AerosolNorthOfY)
	}
	segments := certainty.Classify(contours, diag, ov)
	for i := range segments {
		if segments[i].Year == p.BaselineYear {
			segments[i].Maturity = maturityInterim
		} else {
			segments[i].Maturity = maturityFinal
		}
	}
	return segments
}

// export writes the shoreline and rates-of-change layers plus the
// diagnostic raster under OutputDir/StudyArea.
func export(p Params, res *Result, diag *raster.Int8Grid) error {
	outDir := filepath.Join(p.OutputDir, p.StudyArea)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrapf(err, "tile: create output dir %s", outDir)
	}

	write := func(path string, fn func(string) error) error {
		if err := fn(path); err != nil {
			return eris.Wrapf(err, "tile: write %s", path)
		}
		res.Outputs = append(res.Outputs, path)
		return nil
	}

	if err := write(filepath.Join(outDir, "annual_shorelines.shp"), func(path string) error {
		return vecio.WriteContoursSHP(path, res.Segments)
	}); err != nil {
		return err
	}
	if err := write(filepath.Join(outDir, "annual_shorelines.geojson"), func(path string) error {
		return vecio.WriteContoursGeoJSON(path, res.Segments)
	}); err != nil {
		return err
	}

	if len(res.Points) > 0 {
		schema := vecio.NewPointsSchema(res.Years, regressorNames(p))
		if err := write(filepath.Join(outDir, "rates_of_change.shp"), func(path string) error {
			return vecio.WritePointsSHP(path, res.Points, schema)
		}); err != nil {
			return err
		}
		if err := write(filepath.Join(outDir, "rates_of_change.geojson"), func(path string) error {
			return vecio.WritePointsGeoJSON(path, res.Points, schema)
		}); err != nil {
			return err
		}
	}

	return write(filepath.Join(outDir, "certainty_diagnostic.bin"), func(path string) error {
		return vecio.WriteDiagnostic(path, diag)
	})
}

func regressorNames(p Params) []string {
	names := make([]string, 0, len(p.Climate)+1)
	names = append(names, "time")
	for name := range p.Climate {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

// stackExtent returns the tile's bounding box in map coordinates, used
// to filter collaborator datasets on read.
func stackExtent(s *raster.Stack) vecio.Extent {
	width, height := s.Shape()
	t := s.Transform()
	x0, y0 := t.Apply(0, 0)
	x1, y1 := t.Apply(float64(width), float64(height))
	return vecio.Extent{
		MinX: math.Min(x0, x1), MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1), MaxY: math.Max(y0, y1),
	}
}
