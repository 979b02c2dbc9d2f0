package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFilesExist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, sources, err := Load(dir, "", nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.Empty(t, sources.Global)
	require.Empty(t, sources.Project)
}

func TestLoadProjectConfigOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeJSONC(t, filepath.Join(dir, FileName), `{
		// trailing comment is fine, hujson standardizes it
		"lock_timeout_ms": 5000,
	}`)

	cfg, sources, err := Load(dir, "", nil)
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.LockTimeoutMs)
	require.Equal(t, filepath.Join(dir, FileName), sources.Project)
}

func TestLoadExplicitConfigPathMustExist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, _, err := Load(dir, "missing.json", nil)
	require.ErrorIs(t, err, errConfigFileNotFound)
}

func TestLoadGlobalConfigFromXDGEnv(t *testing.T) {
	t.Parallel()

	xdgHome := t.TempDir()
	writeJSONC(t, filepath.Join(xdgHome, "lockguard", "config.json"), `{"lock_dir": "/var/lockguard"}`)

	dir := t.TempDir()
	cfg, sources, err := Load(dir, "", []string{"XDG_CONFIG_HOME=" + xdgHome})
	require.NoError(t, err)
	require.Equal(t, "/var/lockguard", cfg.LockDir)
	require.Equal(t, filepath.Join(xdgHome, "lockguard", "config.json"), sources.Global)
}

func TestProjectConfigOverridesGlobalConfig(t *testing.T) {
	t.Parallel()

	xdgHome := t.TempDir()
	writeJSONC(t, filepath.Join(xdgHome, "lockguard", "config.json"), `{"lock_timeout_ms": 1000}`)

	dir := t.TempDir()
	writeJSONC(t, filepath.Join(dir, FileName), `{"lock_timeout_ms": 9000}`)

	cfg, _, err := Load(dir, "", []string{"XDG_CONFIG_HOME=" + xdgHome})
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.LockTimeoutMs)
}

func TestFormatProducesIndentedJSON(t *testing.T) {
	t.Parallel()

	out, err := Format(Config{LockTimeoutMs: 1500})
	require.NoError(t, err)
	require.Contains(t, out, "\"lock_timeout_ms\": 1500")
}

func writeJSONC(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
