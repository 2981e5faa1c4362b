//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoadEnvFile reads a dotenv file and tolerates an empty path.
func TestLoadEnvFile(t *testing.T) {
	t.Parallel()

	values, err := LoadEnvFile("")
	require.NoError(t, err)
	require.Empty(t, values)

	path := filepath.Join(t.TempDir(), "release.env")
	require.NoError(t, os.WriteFile(path, []byte("# signing\nMACOSX_DEPLOYMENT_TARGET=11.0\nPYI_FLAGS=\"--log-level WARN\"\n"), 0o600))

	values, err = LoadEnvFile(path)
	require.NoError(t, err)
	require.Equal(t, "11.0", values["MACOSX_DEPLOYMENT_TARGET"])
	require.Equal(t, "--log-level WARN", values["PYI_FLAGS"])

	_, err = LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestMergeEnv checks overrides win and malformed entries are dropped.
func TestMergeEnv(t *testing.T) {
	t.Parallel()

	merged := MergeEnv(
		[]string{"PATH=/usr/bin", "HOME=/root", "broken"},
		map[string]string{"HOME": "/tmp/home", "EXTRA": "1"},
	)

	require.Equal(t, []string{"EXTRA=1", "HOME=/tmp/home", "PATH=/usr/bin"}, merged)
}
