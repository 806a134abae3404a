package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.AllowInsecureDownloads)
	assert.Equal(t, 1, cfg.DownloadRetries)
	assert.Equal(t, time.Duration(0), cfg.InstallerTimeout())
	assert.Equal(t, 5*time.Minute, cfg.DownloadTimeout())
	assert.Equal(t, time.Minute, cfg.VersionTimeout())
}

func TestLoadConfigOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
ManifestPath: config/software.yaml
Workspace: D:\setup
InstallerTimeoutMinutes: 30
AllowInsecureDownloads: false
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "config/software.yaml", cfg.ManifestPath)
	assert.Equal(t, 30*time.Minute, cfg.InstallerTimeout())
	assert.False(t, cfg.AllowInsecureDownloads)
	// untouched keys keep their defaults
	assert.Equal(t, 60, cfg.VersionTimeoutSeconds)
	assert.True(t, cfg.Online)
}

func TestLoadConfigExplicitMissingFileFails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsNegativeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("DownloadRetries: -1\n"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := GetDefaultConfig()
	cfg.Silent = true
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, loaded.Silent)
}

func TestResolvedManifestPath(t *testing.T) {
	cfg := &Configuration{Workspace: filepath.Join("opt", "setup"), ManifestPath: "manifest.json"}
	assert.Equal(t, filepath.Join("opt", "setup", "manifest.json"), cfg.ResolvedManifestPath())

	abs, err := filepath.Abs("manifest.json")
	require.NoError(t, err)
	cfg.ManifestPath = abs
	assert.Equal(t, abs, cfg.ResolvedManifestPath())
}
