package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Queue.MaxConcurrent)
	assert.Equal(t, "data/state.json", cfg.State.Path)
	assert.Equal(t, "data/audit.db", cfg.Storage.DSN)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 30, cfg.Watchdog.IntervalSeconds)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
queue:
  max_concurrent: 2
model:
  provider: mock
  name: test-model
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Queue.MaxConcurrent)
	assert.Equal(t, "mock", cfg.Model.Provider)
	// Unset keys keep their defaults.
	assert.Equal(t, "data/state.json", cfg.State.Path)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AUDITMESH_SERVER_ADDR", ":7070")
	t.Setenv("AUDITMESH_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  max_concurrent: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent")
}
