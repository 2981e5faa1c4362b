package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/oshokin/rwb-release/internal/domain/bundle"
	"github.com/oshokin/rwb-release/internal/logger"
)

var (
	// ErrBundleMissing is returned when the expected bundle directory is absent.
	ErrBundleMissing = errors.New("bundle not found")
	// ErrBundleEmpty is returned when the bundle directory has no entries.
	ErrBundleEmpty = errors.New("bundle is empty")
	// ErrDataFileMissing is returned when a declared data file is not inside the bundle.
	ErrDataFileMissing = errors.New("declared data file missing from bundle")
	// ErrExcludedModulePresent is returned when an excluded module made it into the bundle.
	ErrExcludedModulePresent = errors.New("excluded module present in bundle")
)

// resourcesDir is where bundlers place data files inside a macOS bundle.
var resourcesDir = filepath.Join("Contents", "Resources")

// Request describes what to verify.
type Request struct {
	// BundlePath is the expected bundle directory.
	BundlePath string
	// ProjectDir resolves data file sources to tell files from directories.
	ProjectDir string
	// Descriptor declares data files and exclusions.
	Descriptor *bundle.Descriptor
}

// Verifier checks bundles against their descriptor.
type Verifier struct{}

// New returns a verifier.
func New() *Verifier {
	return new(Verifier)
}

// Verify runs every check and logs a single diagnostic line on failure.
func (v *Verifier) Verify(ctx context.Context, req *Request) error {
	err := v.verify(req)
	if err != nil {
		logger.ErrorKV(ctx, "Bundle verification failed", "bundle", req.BundlePath, "error", err)

		return err
	}

	logger.InfoKV(ctx, "Bundle verified", "bundle", req.BundlePath)

	return nil
}

func (v *Verifier) verify(req *Request) error {
	if err := checkExists(req.BundlePath); err != nil {
		return err
	}

	if req.Descriptor == nil {
		return nil
	}

	if err := checkDataFiles(req); err != nil {
		return err
	}

	return checkExcludes(req)
}

// checkExists requires a non-empty directory at path.
func checkExists(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrBundleMissing, path)
	}

	if err != nil {
		return fmt.Errorf("stat bundle: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBundleMissing, path)
	}

	dir, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open bundle: %w", err)
	}

	defer func() {
		_ = dir.Close()
	}()

	if _, err = dir.Readdirnames(1); errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s", ErrBundleEmpty, path)
	} else if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}

	return nil
}

// checkDataFiles requires every data file at its destination under the resources root.
// A directory source lands at the destination itself, a file source inside it.
func checkDataFiles(req *Request) error {
	resources := filepath.Join(req.BundlePath, resourcesDir)

	for _, df := range req.Descriptor.DataFiles {
		expected := filepath.Join(resources, df.Destination)

		source := df.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(req.ProjectDir, source)
		}

		info, err := os.Stat(source)
		if err != nil || !info.IsDir() {
			expected = filepath.Join(expected, filepath.Base(df.Source))
		}

		if _, err = os.Stat(expected); err != nil {
			return fmt.Errorf("%w: %s -> %s", ErrDataFileMissing, df.Source, expected)
		}
	}

	return nil
}

// moduleExtensions are the file extensions a bundled Python module can carry.
var moduleExtensions = []string{".py", ".pyc", ".pyo", ".pyd", ".so"}

// checkExcludes walks the bundle looking for excluded modules: a package
// directory at the module's dotted path, or a module file named after it.
// Declared data file trees are not modules and are skipped.
func checkExcludes(req *Request) error {
	if len(req.Descriptor.Excludes) == 0 {
		return nil
	}

	root := req.BundlePath
	resources := filepath.Join(root, resourcesDir)

	dataTrees := make(map[string]struct{}, len(req.Descriptor.DataFiles))
	for _, df := range req.Descriptor.DataFiles {
		dest := filepath.Join(resources, df.Destination)
		if dest != resources {
			dataTrees[dest] = struct{}{}
		}
	}

	excluded := make([][]string, 0, len(req.Descriptor.Excludes))
	for _, name := range req.Descriptor.Excludes {
		excluded = append(excluded, bundle.ModuleSegments(name))
	}

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == root {
			return nil
		}

		if _, found := dataTrees[path]; found {
			if entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		segments, ok := modulePath(rel, entry.IsDir())
		if !ok {
			return nil
		}

		for _, module := range excluded {
			if hasSuffix(segments, module) {
				return fmt.Errorf("%w: %s", ErrExcludedModulePresent, rel)
			}
		}

		return nil
	})
}

// modulePath returns the path segments a bundle entry would import as.
// Files without a module extension are never modules.
func modulePath(rel string, isDir bool) ([]string, bool) {
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if isDir {
		return segments, true
	}

	last := segments[len(segments)-1]
	if !slices.Contains(moduleExtensions, filepath.Ext(last)) {
		return nil, false
	}

	// "QtCore.abi3.so" and "tkinter.cpython-311.pyc" both import as their first dotted part.
	segments[len(segments)-1], _, _ = strings.Cut(last, ".")

	return segments, true
}

// hasSuffix reports whether segments end with suffix.
func hasSuffix(segments, suffix []string) bool {
	if len(suffix) == 0 || len(suffix) > len(segments) {
		return false
	}

	return slices.Equal(segments[len(segments)-len(suffix):], suffix)
}
