//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRunMarker_AcquireRelease verifies exclusive acquisition and idempotent release.
func TestRunMarker_AcquireRelease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".rwb-release.marker")

	m, err := AcquireRunMarker(ctx, path)
	require.NoError(t, err)
	require.FileExists(t, m.Path())

	_, err = AcquireRunMarker(ctx, path)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, m.Release())
	require.NoFileExists(t, path)
	require.NoError(t, m.Release())

	m, err = AcquireRunMarker(ctx, path)
	require.NoError(t, err)
	require.NoError(t, m.Release())
}

// TestRunMarker_StaleReplaced replaces markers left by dead or unrelated processes.
func TestRunMarker_StaleReplaced(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	stale := map[string]string{
		"garbage":   "not a pid",
		"reusedpid": fmt.Sprintf("%d\nsome-other-program\n", os.Getpid()),
	}

	for name, contents := range stale {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

		m, err := AcquireRunMarker(ctx, path)
		require.NoError(t, err, name)
		require.NoError(t, m.Release())
	}
}

// TestParseMarker covers well-formed and malformed marker content.
func TestParseMarker(t *testing.T) {
	t.Parallel()

	pid, name := parseMarker("42\nrwb-release\n")
	require.Equal(t, 42, pid)
	require.Equal(t, "rwb-release", name)

	pid, _ = parseMarker("")
	require.Zero(t, pid)
}
