//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/rwb-release/internal/logger"
)

// markerFileMode restricts the marker to the current user.
const markerFileMode = 0o600

// ErrAlreadyRunning is returned when another live run holds the project marker.
var ErrAlreadyRunning = errors.New("another release run is in progress for this project")

// RunMarker marks a project as having a workflow in flight.
// The marker holds the owner PID and executable name; a marker whose owner is
// gone (or whose PID now belongs to another program) is stale and replaced.
type RunMarker struct {
	path string
}

// AcquireRunMarker creates the marker at path or fails with ErrAlreadyRunning.
func AcquireRunMarker(ctx context.Context, path string) (*RunMarker, error) {
	path = filepath.Clean(path)

	if err := removeStaleMarker(ctx, path); err != nil {
		return nil, err
	}

	self, err := processName(os.Getpid())
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, markerFileMode)
	if errors.Is(err, os.ErrExist) {
		return nil, ErrAlreadyRunning
	}

	if err != nil {
		return nil, fmt.Errorf("create run marker: %w", err)
	}

	_, err = fmt.Fprintf(file, "%d\n%s\n", os.Getpid(), self)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write run marker: %w", err)
	}

	logger.DebugKV(ctx, "Run marker acquired", "path", path)

	return &RunMarker{path: path}, nil
}

// Path returns the marker location.
func (m *RunMarker) Path() string {
	return m.path
}

// Release removes the marker. Releasing twice is not an error.
func (m *RunMarker) Release() error {
	if m == nil {
		return nil
	}

	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove run marker: %w", err)
	}

	return nil
}

// removeStaleMarker deletes a marker whose owner is no longer running.
func removeStaleMarker(ctx context.Context, path string) error {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read run marker: %w", err)
	}

	pid, name := parseMarker(string(contents))
	if pid > 0 {
		running, lookupErr := processName(pid)
		if lookupErr != nil {
			return lookupErr
		}

		if running != "" && running == name {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
	}

	logger.InfoKV(ctx, "Removing stale run marker", "path", path, "pid", pid)

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale run marker: %w", err)
	}

	return nil
}

// parseMarker extracts the PID and executable name; malformed content yields pid 0.
func parseMarker(contents string) (int, string) {
	pidLine, name, _ := strings.Cut(strings.TrimSpace(contents), "\n")

	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, ""
	}

	return pid, strings.TrimSpace(name)
}

// processName returns the executable name of a live process, or "" when it is gone.
func processName(pid int) (string, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return "", fmt.Errorf("find process %d: %w", pid, err)
	}

	if process == nil {
		return "", nil
	}

	return process.Executable(), nil
}
