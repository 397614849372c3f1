package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
worker:
  eager: false
mold:
  binary: /opt/mold/mold
history:
  enabled: false
logger:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Worker.Eager)
	assert.Equal(t, "/opt/mold/mold", cfg.Mold.Binary)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Logger.Level)
	// untouched keys keep their defaults
	assert.Equal(t, []string{"stderr"}, cfg.Logger.OutputPaths)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Worker.Eager)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "mold", cfg.Mold.Binary)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.NotEmpty(t, cfg.History.Path)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	t.Setenv("MOLDRUN_MOLD_BINARY", "/usr/local/bin/mold")
	t.Setenv("MOLDRUN_WORKER_EAGER", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/mold", cfg.Mold.Binary)
	assert.False(t, cfg.Worker.Eager)
}
