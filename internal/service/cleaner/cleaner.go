package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/logger"
)

// ErrUnsafePath is returned for paths the cleaner refuses to delete.
var ErrUnsafePath = errors.New("refusing to remove path")

// Cleaner deletes build output directories.
type Cleaner struct {
	// protected are paths that must never be removed, such as the project directory.
	protected map[string]struct{}
}

// New returns a cleaner that never removes any of the protected paths.
func New(protected ...string) *Cleaner {
	c := &Cleaner{
		protected: make(map[string]struct{}, len(protected)),
	}

	for _, p := range protected {
		if abs, err := filepath.Abs(p); err == nil {
			c.protected[abs] = struct{}{}
		}
	}

	return c
}

// Clean removes each directory tree if present. Missing directories are not an error.
func (c *Cleaner) Clean(ctx context.Context, dirs ...string) error {
	for _, dir := range dirs {
		if err := c.check(dir); err != nil {
			return err
		}
	}

	for _, dir := range dirs {
		if _, err := os.Lstat(dir); errors.Is(err, os.ErrNotExist) {
			logger.DebugKV(ctx, "Nothing to clean", "path", dir)
			continue
		}

		logger.InfoKV(ctx, "Removing build output", "path", dir)

		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}

	return nil
}

// check rejects empty paths, filesystem roots and paths that are or contain a protected path.
func (c *Cleaner) check(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	if abs == filepath.Dir(abs) {
		return fmt.Errorf("%w: %s is a filesystem root", ErrUnsafePath, abs)
	}

	for protected := range c.protected {
		if config.Contains(abs, protected) {
			return fmt.Errorf("%w: %s contains protected %s", ErrUnsafePath, abs, protected)
		}
	}

	return nil
}
