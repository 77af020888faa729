package points

import (
	"context"
	"math"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/coastline-cli/internal/model"
	"github.com/sells-group/coastline-cli/internal/raster"
)

// MovementParams configures the annual movement calculator.
type MovementParams struct {
	// BaselineYear is the reference shoreline year; its own distance is
	// defined as exactly zero.
	BaselineYear int
	// MaxValidDist marks any larger distance missing rather than clamped,
	// so contour discontinuities cannot corrupt the regressions.
	MaxValidDist float64
	// Workers bounds the per-point parallelism; zero means GOMAXPROCS.
	Workers int
}

// AnnualMovements fills each reference point's per-year signed distance
// series. The magnitude is the distance to the nearest point on the
// comparison year's contour; the sign is radiometric: the comparison
// year's index sampled at the baseline point against the baseline year's
// index sampled at the comparison point. Wetter conditions at the
// baseline location mean the shoreline moved seaward (positive).
//
// Points are independent, so the calculation fans out across workers.
func AnnualMovements(ctx context.Context, pts []*model.ReferencePoint, contours map[int]*geom.MultiLineString, index map[int]*raster.Grid, p MovementParams) error {
	baseGrid, ok := index[p.BaselineYear]
	if !ok {
		return eris.Errorf("points: no index grid for baseline year %d", p.BaselineYear)
	}
	if p.MaxValidDist <= 0 {
		p.MaxValidDist = 1000
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, pt := range pts {
		pt := pt
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for year, comp := range contours {
				if year == p.BaselineYear {
					continue
				}
				pt.Distances[year] = movement(pt, comp, baseGrid, index[year], p.MaxValidDist)
			}
			pt.Distances[p.BaselineYear] = 0.0
			return nil
		})
	}
	return g.Wait()
}

// movement computes one signed, rounded distance, or NaN when the
// distance is implausible or either index sample is missing.
func movement(pt *model.ReferencePoint, comp *geom.MultiLineString, baseGrid, compGrid *raster.Grid, maxValid float64) float64 {
	nx, ny, d := NearestOnLine(pt.X, pt.Y, comp)
	if math.IsInf(d, 1) || d >= maxValid {
		return math.NaN()
	}

	if compGrid == nil {
		return math.NaN()
	}
	compAtBaseline := raster.Sample(compGrid, pt.X, pt.Y)
	baselineAtComp := raster.Sample(baseGrid, nx, ny)
	if math.IsNaN(compAtBaseline) || math.IsNaN(baselineAtComp) {
		return math.NaN()
	}

	// Higher water index at the comparison location (sampled from the
	// baseline raster) than at the baseline location (sampled from the
	// comparison raster) means the comparison shoreline sits seaward.
	sign := -1.0
	if baselineAtComp > compAtBaseline {
		sign = 1.0
	}
	return round2(sign * d)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
