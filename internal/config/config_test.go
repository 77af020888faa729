package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "mndwi", cfg.Analysis.WaterIndex)
	assert.InDelta(t, 0.0, cfg.Analysis.IndexThreshold, 0.001)
	assert.Equal(t, 2020, cfg.Analysis.BaselineYear)
	assert.Equal(t, 1988, cfg.Analysis.InitialYear)
	assert.Equal(t, 25, cfg.Analysis.BufferPixels)
	assert.InDelta(t, 30.0, cfg.Analysis.PointSpacing, 0.001)
	assert.InDelta(t, 1000.0, cfg.Analysis.MaxValidDist, 0.001)
	assert.Equal(t, 10, cfg.Analysis.MinVertices)
	assert.Equal(t, 4, cfg.Analysis.OceanConnectivity)
	assert.Equal(t, 3, cfg.Analysis.OceanDilation)
	assert.InDelta(t, 3.5, cfg.Analysis.MADThreshold, 0.001)
	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.Equal(t, []string{"soi", "pdo"}, cfg.Climate.Indices)
	assert.True(t, cfg.Climate.Detrend)
	assert.Empty(t, cfg.Store.Path)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
paths:
  raster_dir: /data/tiles
  seeds: /data/seeds.shp
analysis:
  baseline_year: 2021
  index_threshold: -0.2
log:
  level: debug
  format: console
store:
  path: runs.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/tiles", cfg.Paths.RasterDir)
	assert.Equal(t, "/data/seeds.shp", cfg.Paths.Seeds)
	assert.Equal(t, 2021, cfg.Analysis.BaselineYear)
	assert.InDelta(t, -0.2, cfg.Analysis.IndexThreshold, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "runs.db", cfg.Store.Path)
	// Defaults still apply for unset values
	assert.Equal(t, "mndwi", cfg.Analysis.WaterIndex)
	assert.Equal(t, 25, cfg.Analysis.BufferPixels)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	want := Config{}
	want.Paths.RasterDir = "/srv/rasters"
	want.Paths.Waterbodies = "/srv/waterbodies.shp"
	want.Analysis.WaterIndex = "awei"
	want.Analysis.BaselineYear = 2019
	want.Climate.Indices = []string{"pdo"}
	want.Climate.Sources = map[string]string{"pdo": "/srv/pdo.long.data"}

	data, err := yaml.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/rasters", cfg.Paths.RasterDir)
	assert.Equal(t, "/srv/waterbodies.shp", cfg.Paths.Waterbodies)
	assert.Equal(t, "awei", cfg.Analysis.WaterIndex)
	assert.Equal(t, 2019, cfg.Analysis.BaselineYear)
	assert.Equal(t, []string{"pdo"}, cfg.Climate.Indices)
	assert.Equal(t, "/srv/pdo.long.data", cfg.Climate.Sources["pdo"])
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
analysis:
  water_index: mndwi
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("COASTLINE_LOG_LEVEL", "warn")
	t.Setenv("COASTLINE_ANALYSIS_WATER_INDEX", "ndwi")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "ndwi", cfg.Analysis.WaterIndex)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("COASTLINE_ANALYSIS_WORKERS", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Analysis.Workers)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Paths: PathsConfig{RasterDir: "/data", OutputDir: "/out"},
		Analysis: AnalysisConfig{
			WaterIndex:        "mndwi",
			BaselineYear:      2020,
			PointSpacing:      30,
			OceanConnectivity: 4,
			Workers:           8,
		},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Paths.RasterDir = ""
	cfg.Analysis.Workers = 0
	cfg.Analysis.OceanConnectivity = 6
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raster_dir is required")
	assert.Contains(t, err.Error(), "workers must be between 1 and 64")
	assert.Contains(t, err.Error(), "ocean_connectivity must be 4 or 8")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
