package bundler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/domain/bundle"
	"github.com/oshokin/rwb-release/internal/logger"
	"github.com/oshokin/rwb-release/internal/service/common"
)

const (
	// dirMode is used for the build directory the descriptor is written into.
	dirMode = 0o755
	// descriptorMode is used for rendered descriptors.
	descriptorMode = 0o644
)

var (
	errUnknownVariant = errors.New("unknown bundler variant")
	errEmptyRequest   = errors.New("build request is incomplete")
)

// Request is the input of a bundle build.
type Request struct {
	// ProjectDir is the application source root; tools run from it.
	ProjectDir string
	// BuildDir is the tool work directory.
	BuildDir string
	// DistDir receives the bundle.
	DistDir string
	// Descriptor is what to bundle.
	Descriptor *bundle.Descriptor
}

// Result is what a successful build reports.
type Result struct {
	// BundlePath is where the tool was asked to put the bundle. It is not
	// verified here: the tool's exit status alone is not trusted.
	BundlePath string
	// DescriptorPath is the rendered descriptor handed to the tool.
	DescriptorPath string
}

// Bundler produces an application bundle from a descriptor.
type Bundler interface {
	Build(ctx context.Context, req *Request) (*Result, error)
}

// New returns the bundler for a variant.
//
//nolint:ireturn // Callers pick the variant at runtime.
func New(variant string, runner common.Runner, python string) (Bundler, error) {
	switch variant {
	case config.VariantPyInstaller:
		return &PyInstaller{runner: runner, python: python}, nil
	case config.VariantPy2App:
		return &Py2App{runner: runner, python: python}, nil
	default:
		return nil, fmt.Errorf("%q: %w", variant, errUnknownVariant)
	}
}

// check rejects requests missing a descriptor or output directories.
func (r *Request) check() error {
	if r == nil || r.Descriptor == nil || r.BuildDir == "" || r.DistDir == "" {
		return errEmptyRequest
	}

	return nil
}

// PyInstaller builds with `python -m PyInstaller` from a generated spec file.
type PyInstaller struct {
	runner common.Runner
	python string
}

// Build implements Bundler.
func (b *PyInstaller) Build(ctx context.Context, req *Request) (*Result, error) {
	if err := req.check(); err != nil {
		return nil, err
	}

	specPath, err := writeDescriptor(ctx, config.VariantPyInstaller, req, req.Descriptor.Metadata.Name+".spec")
	if err != nil {
		return nil, err
	}

	cmd := common.Command{
		Name: b.python,
		Args: []string{
			"-m", "PyInstaller",
			"--clean",
			"--noconfirm",
			"--workpath", req.BuildDir,
			"--distpath", req.DistDir,
			specPath,
		},
		Dir: req.ProjectDir,
	}

	if err = b.runner.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("pyinstaller: %w", err)
	}

	return &Result{
		BundlePath:     filepath.Join(req.DistDir, req.Descriptor.BundleName()),
		DescriptorPath: specPath,
	}, nil
}

// Py2App builds with py2app from a generated setup script.
type Py2App struct {
	runner common.Runner
	python string
}

// Build implements Bundler.
func (b *Py2App) Build(ctx context.Context, req *Request) (*Result, error) {
	if err := req.check(); err != nil {
		return nil, err
	}

	setupPath, err := writeDescriptor(ctx, config.VariantPy2App, req, "setup.py")
	if err != nil {
		return nil, err
	}

	cmd := common.Command{
		Name: b.python,
		Args: []string{
			setupPath,
			"py2app",
			"--dist-dir", req.DistDir,
			"--bdist-base", req.BuildDir,
		},
		Dir: req.ProjectDir,
	}

	if err = b.runner.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("py2app: %w", err)
	}

	return &Result{
		BundlePath:     filepath.Join(req.DistDir, req.Descriptor.BundleName()),
		DescriptorPath: setupPath,
	}, nil
}

// writeDescriptor renders the variant descriptor into the build directory.
func writeDescriptor(ctx context.Context, variant string, req *Request, filename string) (string, error) {
	contents, err := Render(variant, req.ProjectDir, req.Descriptor)
	if err != nil {
		return "", err
	}

	if err = os.MkdirAll(req.BuildDir, dirMode); err != nil {
		return "", fmt.Errorf("create build directory: %w", err)
	}

	path := filepath.Join(req.BuildDir, filename)
	if err = os.WriteFile(path, contents, descriptorMode); err != nil {
		return "", fmt.Errorf("write %s descriptor: %w", variant, err)
	}

	logger.InfoKV(ctx, "Bundler descriptor written", "variant", variant, "path", path)

	return path, nil
}
