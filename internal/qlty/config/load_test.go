package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
config_version: "0"
exclude_patterns:
  - vendor/**
plugin:
  - name: eslint
    version: "8.0.0"
  - name: clippy
`

func TestLoadParsesPluginArrayIntoEnabledPlugins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qlty.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.EnabledPlugins, 2)
	assert.Equal(t, "eslint", cfg.EnabledPlugins[0].Name)
	assert.Equal(t, "8.0.0", cfg.EnabledPlugins[0].Version)
	assert.Equal(t, "clippy", cfg.EnabledPlugins[1].Name)
	assert.Equal(t, []string{"vendor/**"}, cfg.ExcludePatterns)
}

func TestValidateRejectsPluginMissingName(t *testing.T) {
	bad := `
plugin:
  - version: "1.0.0"
`
	err := Validate([]byte(bad))
	assert.Error(t, err)
}

func TestValidateAcceptsDocumentWithNoPlugins(t *testing.T) {
	err := Validate([]byte(`config_version: "0"`))
	assert.NoError(t, err)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/qlty.toml")
	assert.Error(t, err)
}
