package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.15, cfg.Matching.SurfaceTolerance, 0.001)
	assert.InDelta(t, 0.5, cfg.Matching.MinFuzzyScore, 0.001)
	assert.InDelta(t, 100, cfg.Matching.GridCellSizeM, 0.001)
	assert.InDelta(t, 0.5, cfg.Matching.GridMatchScore, 0.001)
	assert.InDelta(t, 50, cfg.Matching.MinCompletenessPct, 0.001)
	assert.InDelta(t, 15, cfg.Matching.MicroStdFloor, 0.001)
	assert.InDelta(t, 0.15, cfg.Matching.MicroCVFloor, 0.001)
	assert.InDelta(t, 1.0, cfg.Matching.MinZonePassRatio, 0.001)
	assert.Equal(t, "first_seen", cfg.Matching.RepresentativePolicy)
	assert.InDelta(t, 15, cfg.Cleaner.SurfaceMin, 0.001)
	assert.InDelta(t, 600, cfg.Cleaner.SurfaceMax, 0.001)
	assert.Equal(t, 10, cfg.Cleaner.RoomMax)
	assert.InDelta(t, 41.3870, cfg.Geo.RefLat, 0.0001)
	assert.InDelta(t, 2.1700, cfg.Geo.RefLon, 0.0001)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "linker.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
matching:
  surface_tolerance: 0.2
  min_fuzzy_score: 0.6
store:
  driver: postgres
  database_url: postgres://localhost/linker
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.2, cfg.Matching.SurfaceTolerance, 0.001)
	assert.InDelta(t, 0.6, cfg.Matching.MinFuzzyScore, 0.001)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/linker", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset keys keep their defaults.
	assert.InDelta(t, 100, cfg.Matching.GridCellSizeM, 0.001)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
}

func TestInitLogger_BadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "shouting", Format: "json"}))
}
