//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestExecRunner_Success runs a real shell command in a given directory with extra env.
func TestExecRunner_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewExecRunner(WithEnv(map[string]string{"RWB_MARK": "ok"}))

	err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `test "$RWB_MARK" = ok && test "$(pwd -P)" = "$(cd "` + dir + `" && pwd -P)"`},
		Dir:  dir,
	})
	require.NoError(t, err)
}

// TestExecRunner_ExitCode keeps the tool exit code and stderr tail.
func TestExecRunner_ExitCode(t *testing.T) {
	t.Parallel()

	r := NewExecRunner()

	err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo building; echo broken spec >&2; exit 3"},
	})

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, 3, cmdErr.ExitCode)
	require.Contains(t, cmdErr.Stderr, "broken spec")
	require.NotContains(t, cmdErr.Stderr, "building")
	require.Equal(t, 3, ExitCode(fmt.Errorf("build: %w", err)))
	require.Contains(t, err.Error(), "exit code 3")
}

// TestExecRunner_ToolNotFound classifies a missing executable.
func TestExecRunner_ToolNotFound(t *testing.T) {
	t.Parallel()

	r := NewExecRunner()
	r.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	err := r.Run(context.Background(), Command{Name: "hdiutil", Args: []string{"create"}})
	require.ErrorIs(t, err, ErrToolNotFound)
	require.Equal(t, 1, ExitCode(err))
}

// TestExecRunner_Timeout ensures a hanging tool is killed and reported as a deadline error.
func TestExecRunner_Timeout(t *testing.T) {
	t.Parallel()

	r := NewExecRunner(WithTimeout(time.Hour))

	err := r.Run(context.Background(), Command{
		Name:    "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestExitCode covers nil and plain errors.
func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(errors.New("boom")))
	require.Equal(t, 1, ExitCode(&CommandError{ExitCode: -1}))
}

// TestLineLogger_Tail keeps only the configured number of lines across partial writes.
func TestLineLogger_Tail(t *testing.T) {
	t.Parallel()

	l := newLineLogger(context.Background(), "stderr", 2)

	_, _ = l.Write([]byte("one\ntw"))
	_, _ = l.Write([]byte("o\nthree\nfour"))
	l.Flush()

	require.Equal(t, "three\nfour", l.Tail())
}
