package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coastline-cli/internal/climate"
	"github.com/sells-group/coastline-cli/internal/model"
	"github.com/sells-group/coastline-cli/internal/tile"
)

var (
	vectorsStudyArea     string
	vectorsRasterVersion string
	vectorsVectorVersion string
	vectorsWaterIndex    string
	vectorsThreshold     float64
	vectorsBaselineYear  int
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Run the shoreline vector pipeline for one study area",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		p := tile.FromConfig(cfg, vectorsStudyArea)
		p.Store = st
		p.RasterVersion = vectorsRasterVersion
		p.VectorVersion = vectorsVectorVersion
		if p.VectorVersion == "" {
			p.VectorVersion = vectorsRasterVersion
		}
		if cmd.Flags().Changed("water-index") {
			p.WaterIndex = vectorsWaterIndex
		}
		if cmd.Flags().Changed("index-threshold") {
			p.IndexThreshold = vectorsThreshold
		}
		if cmd.Flags().Changed("baseline-year") {
			p.BaselineYear = vectorsBaselineYear
		}

		p.Climate, err = loadClimate(p.BaselineYear)
		if err != nil {
			return err
		}

		result, err := tile.Run(ctx, p)
		if err != nil {
			return eris.Wrapf(err, "vectors %s", vectorsStudyArea)
		}

		zap.L().Info("vectors complete",
			zap.String("study_area", vectorsStudyArea),
			zap.Ints("years", result.Years),
			zap.Int("points", len(result.Points)),
			zap.Int("segments", len(result.Segments)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			StudyArea   string   `json:"study_area"`
			Years       []int    `json:"years"`
			FailedYears []int    `json:"failed_years,omitempty"`
			Points      int      `json:"points"`
			Segments    int      `json:"segments"`
			Outputs     []string `json:"outputs"`
		}{
			StudyArea:   vectorsStudyArea,
			Years:       result.Years,
			FailedYears: result.FailedYears,
			Points:      len(result.Points),
			Segments:    len(result.Segments),
			Outputs:     result.Outputs,
		})
	},
}

// loadClimate fetches every configured climate-index series, clipped to
// the analysis period.
func loadClimate(baselineYear int) (map[string]model.ClimateSeries, error) {
	if len(cfg.Climate.Indices) == 0 {
		return nil, nil
	}

	known := climate.KnownIndexes()
	fetcher := climate.NewHTTPFetcher(climate.HTTPOptions{})
	opts := climate.LoadOptions{
		FirstYear: cfg.Analysis.InitialYear,
		LastYear:  baselineYear,
		Detrend:   cfg.Climate.Detrend,
	}

	series := make(map[string]model.ClimateSeries, len(cfg.Climate.Indices))
	for _, name := range cfg.Climate.Indices {
		spec, ok := known[name]
		if !ok {
			return nil, eris.Errorf("unknown climate index %q", name)
		}
		if src := cfg.Climate.Sources[name]; src != "" {
			spec.Source = src
		}
		s, err := climate.Load(spec, opts, fetcher)
		if err != nil {
			return nil, eris.Wrapf(err, "load climate index %s", name)
		}
		series[name] = s
		zap.L().Info("climate index loaded", zap.String("index", name), zap.Int("years", len(s)))
	}
	return series, nil
}

func init() {
	vectorsCmd.Flags().StringVar(&vectorsStudyArea, "study-area", "", "study area tile ID (required)")
	vectorsCmd.Flags().StringVar(&vectorsRasterVersion, "raster-version", "", "input raster version tag (required)")
	vectorsCmd.Flags().StringVar(&vectorsVectorVersion, "vector-version", "", "output vector version tag (defaults to raster version)")
	vectorsCmd.Flags().StringVar(&vectorsWaterIndex, "water-index", "", "water index name override")
	vectorsCmd.Flags().Float64Var(&vectorsThreshold, "index-threshold", 0, "land/water threshold override")
	vectorsCmd.Flags().IntVar(&vectorsBaselineYear, "baseline-year", 0, "baseline year override")
	_ = vectorsCmd.MarkFlagRequired("study-area")
	_ = vectorsCmd.MarkFlagRequired("raster-version")
	rootCmd.AddCommand(vectorsCmd)
}
