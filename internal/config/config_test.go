package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "2", cfg.Datastore.CollectionID)
	assert.Equal(t, 1000, cfg.Datastore.PageSize)
	assert.Equal(t, 500, cfg.Datastore.FloorPageSize)
	assert.Equal(t, 5, cfg.Datastore.MaxRetries)
	assert.Equal(t, 8, cfg.Geocode.Concurrency)
	assert.Equal(t, 5000, cfg.Geocode.BatchSize)
	assert.False(t, cfg.Geocode.ContinuousMode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_FromFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  database_url: postgres://localhost/registry
datastore:
  page_size: 250
  retry_floor_page_size: 50
geocode:
  geocode_concurrency: 4
  continuous_mode: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/registry", cfg.Store.DatabaseURL)
	assert.Equal(t, 250, cfg.Datastore.PageSize)
	assert.Equal(t, 50, cfg.Datastore.FloorPageSize)
	assert.Equal(t, 4, cfg.Geocode.Concurrency)
	assert.True(t, cfg.Geocode.ContinuousMode)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Datastore.MaxRetries)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("REGISTRY_DATASTORE_PAGE_SIZE", "123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 123, cfg.Datastore.PageSize)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
