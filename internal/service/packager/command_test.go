package packager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/rwb-release/internal/config"
)

// saveConfig writes a default configuration for a throwaway project.
func saveConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultConfigFilename)

	cfg := config.Default()
	cfg.ProjectDir = dir
	require.NoError(t, config.Save(path, cfg))

	return path
}

// TestLoadConfig_Overrides applies command-line overrides over the file.
func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()

	path := saveConfig(t)

	cfg, err := LoadConfig(&Options{
		ConfigPath:  path,
		Variant:     "PY2APP",
		EnvFile:     "release.env",
		KeepStaging: true,
	})
	require.NoError(t, err)
	require.Equal(t, config.VariantPy2App, cfg.Variant)
	require.Equal(t, filepath.Join(filepath.Dir(path), "release.env"), cfg.EnvFilePath())
	require.True(t, cfg.KeepStaging)

	cfg, err = LoadConfig(&Options{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, config.VariantPyInstaller, cfg.Variant)
	require.False(t, cfg.KeepStaging)
}

// TestLoadConfig_UnknownVariant rejects variants without a bundler.
func TestLoadConfig_UnknownVariant(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(&Options{ConfigPath: saveConfig(t), Variant: "nuitka"})
	require.Error(t, err)
}

// TestRun_ConfigErrors fails before touching the project.
func TestRun_ConfigErrors(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "absent.yaml")
	require.ErrorIs(t, Run(context.Background(), &Options{ConfigPath: missing}), os.ErrNotExist)

	path := saveConfig(t)
	err := Run(context.Background(), &Options{ConfigPath: path, EnvFile: "missing.env"})
	require.ErrorContains(t, err, "read env file")
	require.NoFileExists(t, filepath.Join(filepath.Dir(path), ".rwb-release.marker"))
}
