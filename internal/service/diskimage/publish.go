package diskimage

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/rwb-release/internal/logger"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ImageFileMode is the mode of published images.
	ImageFileMode os.FileMode = 0o644

	// ChecksumFunction is used to verify and record published images.
	ChecksumFunction crypto.Hash = crypto.SHA512

	// partialSuffix marks an image that has not been published yet. It keeps
	// the .dmg extension because hdiutil appends one otherwise.
	partialSuffix = ".partial.dmg"
)

var errHashUnavailable = errors.New("hash function unavailable")

// Publication describes a published image.
type Publication struct {
	// Path is the fixed output path.
	Path string
	// Size is the image size in bytes.
	Size int64
	// Checksum is the ChecksumFunction digest of the image.
	Checksum []byte
}

// PartialPath is where the image for finalPath is created before publishing.
// It lives in the same directory so the final rename stays on one filesystem.
func PartialPath(finalPath string) string {
	dir, name := filepath.Split(finalPath)

	return filepath.Join(dir, "."+strings.TrimSuffix(name, filepath.Ext(name))+partialSuffix)
}

// Publish replaces finalPath with the image at partialPath in one atomic
// swap, after checking the bytes being swapped in match the digest taken from
// the partial file. An earlier image at finalPath is overwritten. The partial
// file is removed on every path.
func Publish(ctx context.Context, partialPath, finalPath string) (*Publication, error) {
	defer func() {
		_ = os.Remove(partialPath)
	}()

	image, err := os.Open(filepath.Clean(partialPath))
	if err != nil {
		return nil, fmt.Errorf("open created image: %w", err)
	}

	defer func() {
		_ = image.Close()
	}()

	checksum, size, err := checksumReader(image)
	if err != nil {
		return nil, err
	}

	if _, err = image.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind created image: %w", err)
	}

	// go-update moves the current target aside before swapping, so it must exist.
	var placeholder bool
	if _, err = os.Stat(finalPath); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(finalPath, nil, ImageFileMode); err != nil {
			return nil, fmt.Errorf("create output image: %w", err)
		}

		placeholder = true
	}

	options := goupdate.Options{
		TargetPath: finalPath,
		TargetMode: ImageFileMode,
		Checksum:   checksum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(image, options); err != nil {
		// A failed swap restores the target; an empty placeholder must not pass for an image.
		if placeholder {
			removePlaceholder(finalPath)
		}

		removeLeftovers(finalPath)

		return nil, fmt.Errorf("publish image: %w", err)
	}

	removeLeftovers(finalPath)

	logger.InfoKV(ctx, "Disk image published", "path", finalPath)

	return &Publication{
		Path:     finalPath,
		Size:     size,
		Checksum: checksum,
	}, nil
}

// FileChecksum returns the ChecksumFunction digest of the file at path.
func FileChecksum(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	checksum, _, err := checksumReader(file)

	return checksum, err
}

func checksumReader(r io.Reader) ([]byte, int64, error) {
	if !ChecksumFunction.Available() {
		return nil, 0, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()

	size, err := io.Copy(hasher, r)
	if err != nil {
		return nil, 0, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), size, nil
}

// removePlaceholder deletes finalPath only while it is still the empty file Publish created.
func removePlaceholder(finalPath string) {
	if info, err := os.Lstat(finalPath); err == nil && info.Mode().IsRegular() && info.Size() == 0 {
		_ = os.Remove(finalPath)
	}
}

// removeLeftovers deletes the swap files go-update may leave behind.
func removeLeftovers(finalPath string) {
	dir, name := filepath.Split(finalPath)

	for _, suffix := range []string{".old", ".new"} {
		leftover := filepath.Join(dir, "."+name+suffix)
		if _, err := os.Stat(leftover); err == nil {
			_ = os.Remove(leftover)
		}
	}
}
