// Package config loads the pipeline configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Climate  ClimateConfig  `yaml:"climate" mapstructure:"climate"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the input datasets and output directory. Raster
// directories are laid out per tile under RasterDir/{study_area}.
type PathsConfig struct {
	RasterDir     string `yaml:"raster_dir" mapstructure:"raster_dir"`
	OutputDir     string `yaml:"output_dir" mapstructure:"output_dir"`
	Seeds         string `yaml:"seeds" mapstructure:"seeds"`
	Waterbodies   string `yaml:"waterbodies" mapstructure:"waterbodies"`
	Modifications string `yaml:"modifications" mapstructure:"modifications"`
	ShoreClasses  string `yaml:"shore_classes" mapstructure:"shore_classes"`
}

// AnalysisConfig carries the tunable analysis parameters. The fixed
// scientific thresholds (stdev, observation count, land frequency) are
// constants in the mask package, not configuration.
type AnalysisConfig struct {
	WaterIndex     string  `yaml:"water_index" mapstructure:"water_index"`
	IndexThreshold float64 `yaml:"index_threshold" mapstructure:"index_threshold"`
	BaselineYear   int     `yaml:"baseline_year" mapstructure:"baseline_year"`
	InitialYear    int     `yaml:"initial_year" mapstructure:"initial_year"`
	BufferPixels   int     `yaml:"buffer_pixels" mapstructure:"buffer_pixels"`
	// PointSpacing is the along-shore distance between reference points,
	// in map units.
	PointSpacing float64 `yaml:"point_spacing" mapstructure:"point_spacing"`
	MaxValidDist float64 `yaml:"max_valid_dist" mapstructure:"max_valid_dist"`
	// RockyBuffer is the clip distance around rocky shore segments.
	RockyBuffer float64 `yaml:"rocky_buffer" mapstructure:"rocky_buffer"`
	// MinVertices drops contour fragments shorter than this many vertices.
	MinVertices int `yaml:"min_vertices" mapstructure:"min_vertices"`
	// OceanConnectivity (4 or 8) and OceanDilation tune the per-year
	// ocean connectivity mask.
	OceanConnectivity int `yaml:"ocean_connectivity" mapstructure:"ocean_connectivity"`
	OceanDilation     int `yaml:"ocean_dilation" mapstructure:"ocean_dilation"`
	// MADThreshold is the modified z-score above which an annual
	// observation is excluded from the regressions.
	MADThreshold float64 `yaml:"mad_threshold" mapstructure:"mad_threshold"`
	// AerosolNorthOfY bounds the 1991-1992 aerosol override; segments
	// with centroids north of this Y are reclassified. Zero disables it.
	AerosolNorthOfY float64 `yaml:"aerosol_north_of_y" mapstructure:"aerosol_north_of_y"`
	Workers         int     `yaml:"workers" mapstructure:"workers"`
}

// ClimateConfig configures the climate-index regressors.
type ClimateConfig struct {
	// Indices names the indices to regress against ("soi", "pdo").
	Indices []string `yaml:"indices" mapstructure:"indices"`
	// Sources optionally overrides an index's URL or local path.
	Sources map[string]string `yaml:"sources" mapstructure:"sources"`
	Detrend bool              `yaml:"detrend" mapstructure:"detrend"`
}

// StoreConfig configures the optional run-tracking database. An empty
// path disables it.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COASTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("paths.raster_dir", "data/rasters")
	v.SetDefault("paths.output_dir", "data/vectors")
	v.SetDefault("analysis.water_index", "mndwi")
	v.SetDefault("analysis.index_threshold", 0.0)
	v.SetDefault("analysis.baseline_year", 2020)
	v.SetDefault("analysis.initial_year", 1988)
	v.SetDefault("analysis.buffer_pixels", 25)
	v.SetDefault("analysis.point_spacing", 30.0)
	v.SetDefault("analysis.max_valid_dist", 1000.0)
	v.SetDefault("analysis.rocky_buffer", 50.0)
	v.SetDefault("analysis.min_vertices", 10)
	v.SetDefault("analysis.ocean_connectivity", 4)
	v.SetDefault("analysis.ocean_dilation", 3)
	v.SetDefault("analysis.mad_threshold", 3.5)
	v.SetDefault("analysis.workers", 8)
	v.SetDefault("climate.indices", []string{"soi", "pdo"})
	v.SetDefault("climate.detrend", true)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the vectors pipeline requires.
func (c *Config) Validate() error {
	var problems []string
	if c.Paths.RasterDir == "" {
		problems = append(problems, "paths.raster_dir is required")
	}
	if c.Paths.OutputDir == "" {
		problems = append(problems, "paths.output_dir is required")
	}
	if c.Analysis.WaterIndex == "" {
		problems = append(problems, "analysis.water_index is required")
	}
	if c.Analysis.BaselineYear <= 0 {
		problems = append(problems, "analysis.baseline_year must be > 0")
	}
	if c.Analysis.PointSpacing <= 0 {
		problems = append(problems, "analysis.point_spacing must be > 0")
	}
	if c.Analysis.OceanConnectivity != 4 && c.Analysis.OceanConnectivity != 8 {
		problems = append(problems, "analysis.ocean_connectivity must be 4 or 8")
	}
	if c.Analysis.Workers < 1 || c.Analysis.Workers > 64 {
		problems = append(problems, "analysis.workers must be between 1 and 64")
	}
	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
