package packager

import (
	"context"
	"fmt"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/repository/manifest"
	"github.com/oshokin/rwb-release/internal/service/bundler"
	"github.com/oshokin/rwb-release/internal/service/cleaner"
	"github.com/oshokin/rwb-release/internal/service/common"
	"github.com/oshokin/rwb-release/internal/service/diskimage"
	"github.com/oshokin/rwb-release/internal/service/installer"
	"github.com/oshokin/rwb-release/internal/service/verifier"
)

// Installer prepares the build environment.
type Installer interface {
	Install(ctx context.Context) error
}

// Cleaner removes build output directories.
type Cleaner interface {
	Clean(ctx context.Context, dirs ...string) error
}

// Verifier checks a built bundle.
type Verifier interface {
	Verify(ctx context.Context, req *verifier.Request) error
}

// StageFunc creates a populated staging directory.
type StageFunc func(ctx context.Context, req *diskimage.StageRequest) (*diskimage.Staging, error)

// PublishFunc moves a created image to its final path.
type PublishFunc func(ctx context.Context, partialPath, finalPath string) (*diskimage.Publication, error)

// Steps holds the capabilities the workflow runs in order.
type Steps struct {
	Installer Installer
	Cleaner   Cleaner
	Bundler   bundler.Bundler
	Verifier  Verifier
	Stage     StageFunc
	Assembler diskimage.Assembler
	Publish   PublishFunc
	Manifests manifest.Repository
}

// DefaultSteps wires the real implementations for cfg. External tools run through runner.
func DefaultSteps(cfg *config.Config, runner common.Runner) (*Steps, error) {
	b, err := bundler.New(cfg.Variant, runner, cfg.Python)
	if err != nil {
		return nil, err
	}

	return &Steps{
		Installer: installer.New(runner, cfg),
		Cleaner:   cleaner.New(cfg.ProjectDir, cfg.Resolve(cfg.OutputDir)),
		Bundler:   b,
		Verifier:  verifier.New(),
		Stage:     diskimage.Stage,
		Assembler: diskimage.NewHdiutil(runner),
		Publish:   diskimage.Publish,
		Manifests: manifest.NewFileRepository(cfg.ManifestPath()),
	}, nil
}

func (s *Steps) check() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: steps", errMissingStep)
	case s.Installer == nil:
		return fmt.Errorf("%w: installer", errMissingStep)
	case s.Cleaner == nil:
		return fmt.Errorf("%w: cleaner", errMissingStep)
	case s.Bundler == nil:
		return fmt.Errorf("%w: bundler", errMissingStep)
	case s.Verifier == nil:
		return fmt.Errorf("%w: verifier", errMissingStep)
	case s.Stage == nil:
		return fmt.Errorf("%w: stage", errMissingStep)
	case s.Assembler == nil:
		return fmt.Errorf("%w: assembler", errMissingStep)
	case s.Publish == nil:
		return fmt.Errorf("%w: publish", errMissingStep)
	case s.Manifests == nil:
		return fmt.Errorf("%w: manifest repository", errMissingStep)
	}

	return nil
}
