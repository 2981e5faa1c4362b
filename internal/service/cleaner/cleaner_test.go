package cleaner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClean_RemovesTrees deletes populated build and dist directories.
func TestClean_RemovesTrees(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	build := filepath.Join(project, "build")
	dist := filepath.Join(project, "dist")

	require.NoError(t, os.MkdirAll(filepath.Join(build, "RWB", "localpycs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "RWB.app", "Contents"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "RWB.app", "Contents", "Info.plist"), []byte("x"), 0o644))

	require.NoError(t, New(project).Clean(context.Background(), build, dist))
	require.NoDirExists(t, build)
	require.NoDirExists(t, dist)
	require.DirExists(t, project)
}

// TestClean_Idempotent succeeds on a tree that is already clean, twice.
func TestClean_Idempotent(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	c := New(project)
	dirs := []string{filepath.Join(project, "build"), filepath.Join(project, "dist")}

	require.NoError(t, c.Clean(context.Background(), dirs...))
	require.NoError(t, c.Clean(context.Background(), dirs...))
}

// TestClean_RefusesUnsafePaths never deletes root, empty or protected paths.
func TestClean_RefusesUnsafePaths(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	c := New(project)

	require.ErrorIs(t, c.Clean(context.Background(), ""), ErrUnsafePath)
	require.ErrorIs(t, c.Clean(context.Background(), string(filepath.Separator)), ErrUnsafePath)
	require.ErrorIs(t, c.Clean(context.Background(), project), ErrUnsafePath)
	require.DirExists(t, project)
}

// TestClean_RefusesAncestorOfProtected never deletes a directory holding the project.
func TestClean_RefusesAncestorOfProtected(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	project := filepath.Join(parent, "rwb")
	main := filepath.Join(project, "main.py")

	require.NoError(t, os.MkdirAll(project, 0o755))
	require.NoError(t, os.WriteFile(main, []byte("print()\n"), 0o644))

	c := New(project)
	require.ErrorIs(t, c.Clean(context.Background(), filepath.Join(project, "..")), ErrUnsafePath)
	require.ErrorIs(t, c.Clean(context.Background(), parent), ErrUnsafePath)
	require.FileExists(t, main)

	// A sibling sharing the name prefix is not an ancestor.
	sibling := filepath.Join(parent, "rwb-build")
	require.NoError(t, os.MkdirAll(sibling, 0o755))
	require.NoError(t, c.Clean(context.Background(), sibling))
	require.NoDirExists(t, sibling)

	// Nothing is removed when any requested path is unsafe.
	build := filepath.Join(project, "build")
	require.NoError(t, os.MkdirAll(build, 0o755))
	require.ErrorIs(t, c.Clean(context.Background(), build, parent), ErrUnsafePath)
	require.DirExists(t, build)
}
