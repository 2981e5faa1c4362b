package diskimage

import (
	"fmt"
	"os"

	cp "github.com/otiai10/copy"
)

// CopyTree copies the directory src to dst, which must not exist yet.
// Permission bits are kept and symlinks are recreated as symlinks, which
// macOS bundles rely on (Versions/Current etc.).
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", src)
	}

	if _, err = os.Lstat(dst); err == nil {
		return fmt.Errorf("%s: %w", dst, os.ErrExist)
	}

	options := cp.Options{
		OnSymlink: func(string) cp.SymlinkAction {
			return cp.Shallow
		},
	}

	if err = cp.Copy(src, dst, options); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}

	return nil
}
