package packager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"go.uber.org/multierr"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/domain/release"
	"github.com/oshokin/rwb-release/internal/logger"
	"github.com/oshokin/rwb-release/internal/service/bundler"
	"github.com/oshokin/rwb-release/internal/service/common"
	"github.com/oshokin/rwb-release/internal/service/diskimage"
	"github.com/oshokin/rwb-release/internal/service/verifier"
	"github.com/oshokin/rwb-release/internal/version"
)

var (
	errMissingStep     = errors.New("workflow step is not set")
	errConfigIsMissing = errors.New("configuration is not set")
)

// Workflow is one run of the release sequence. It is single use.
type Workflow struct {
	cfg         *config.Config
	steps       *Steps
	machine     *release.Machine
	skipInstall bool
	now         func() time.Time
}

// WorkflowOption customizes a Workflow.
type WorkflowOption func(*Workflow)

// WithSkipInstall leaves the build environment as it is.
func WithSkipInstall(skip bool) WorkflowOption {
	return func(w *Workflow) {
		w.skipInstall = skip
	}
}

// NewWorkflow returns a workflow for a validated configuration.
func NewWorkflow(cfg *config.Config, steps *Steps, opts ...WorkflowOption) (*Workflow, error) {
	if cfg == nil {
		return nil, errConfigIsMissing
	}

	if err := steps.check(); err != nil {
		return nil, err
	}

	w := &Workflow{
		cfg:     cfg,
		steps:   steps,
		machine: release.NewMachine(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Stage returns the stage the run reached.
func (w *Workflow) Stage() release.Stage {
	return w.machine.Current()
}

// History returns the stage transitions of the run.
func (w *Workflow) History() []release.Transition {
	return w.machine.History()
}

// Run executes every step in order and stops at the first failure. The
// staging directory is removed on every exit path unless the configuration
// keeps it; a cleanup failure is reported alongside the step error.
func (w *Workflow) Run(ctx context.Context) (result *release.Manifest, err error) {
	var staging *diskimage.Staging

	defer func() {
		if staging != nil {
			// The run may have been interrupted; removing the directory must not depend on ctx.
			if cleanupErr := staging.Cleanup(context.WithoutCancel(ctx)); cleanupErr != nil {
				err = multierr.Append(err, fmt.Errorf("remove staging: %w", cleanupErr))
			}
		}

		if err != nil {
			result = nil

			if failErr := w.machine.Fail(err); failErr != nil {
				logger.WarnKV(ctx, "Could not record failure", "error", failErr)
			}

			logger.ErrorKV(ctx, "Release failed", "stage", w.failedStage(), "error", err)
		}
	}()

	if err = w.install(ctx); err != nil {
		return nil, err
	}

	if err = w.clean(ctx); err != nil {
		return nil, err
	}

	if err = w.build(ctx); err != nil {
		return nil, err
	}

	if staging, err = w.stage(ctx); err != nil {
		return nil, err
	}

	publication, err := w.createImage(ctx, staging)
	if err != nil {
		return nil, err
	}

	cleanupErr := staging.Cleanup(ctx)
	staging = nil

	if err = w.advance(ctx, release.StageCleanedStaging, "remove staging", cleanupErr); err != nil {
		return nil, err
	}

	m := w.manifest(ctx, publication)

	err = w.steps.Manifests.Save(ctx, m)
	if err = w.advance(ctx, release.StageDone, "write manifest", err); err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Image checksum", "sha512", m.Checksum)
	logger.Infof(ctx, "Release %s published at %s (%s)", m.Version, publication.Path, m.HumanSize)

	return m, nil
}

// install enters Installing and prepares the build environment.
func (w *Workflow) install(ctx context.Context) error {
	if err := w.advance(ctx, release.StageInstalling, "", nil); err != nil {
		return err
	}

	if w.skipInstall {
		logger.Info(ctx, "Skipping dependency installation")

		return nil
	}

	if err := w.steps.Installer.Install(ctx); err != nil {
		return fmt.Errorf("install dependencies: %w", err)
	}

	return nil
}

// clean removes stale build output and enters Cleaned.
func (w *Workflow) clean(ctx context.Context) error {
	err := w.steps.Cleaner.Clean(ctx, w.cfg.BuildPath(), w.cfg.DistPath())

	return w.advance(ctx, release.StageCleaned, "clean build directories", err)
}

// build runs the bundler in Building and enters Verified once the bundle checks out.
func (w *Workflow) build(ctx context.Context) error {
	if err := w.advance(ctx, release.StageBuilding, "", nil); err != nil {
		return err
	}

	result, err := w.steps.Bundler.Build(ctx, &bundler.Request{
		ProjectDir: w.cfg.ProjectDir,
		BuildDir:   w.cfg.BuildPath(),
		DistDir:    w.cfg.DistPath(),
		Descriptor: w.cfg.Bundle.Clone(),
	})
	if err != nil {
		return fmt.Errorf("build bundle: %w", err)
	}

	logger.DebugKV(ctx, "Bundler finished", "descriptor", result.DescriptorPath)

	err = w.steps.Verifier.Verify(ctx, &verifier.Request{
		BundlePath: w.cfg.BundlePath(),
		ProjectDir: w.cfg.ProjectDir,
		Descriptor: w.cfg.Bundle.Clone(),
	})

	return w.advance(ctx, release.StageVerified, "verify bundle", err)
}

// stage copies the verified bundle into a fresh staging directory.
func (w *Workflow) stage(ctx context.Context) (*diskimage.Staging, error) {
	if err := w.advance(ctx, release.StageStaging, "", nil); err != nil {
		return nil, err
	}

	staging, err := w.steps.Stage(ctx, &diskimage.StageRequest{
		BundlePath:       w.cfg.BundlePath(),
		Parent:           w.stagingParent(),
		ApplicationsLink: w.cfg.ApplicationsLink,
		Keep:             w.cfg.KeepStaging,
	})
	if err != nil {
		return nil, fmt.Errorf("stage bundle: %w", err)
	}

	return staging, nil
}

// createImage assembles the image next to its final path and publishes it.
func (w *Workflow) createImage(ctx context.Context, staging *diskimage.Staging) (*diskimage.Publication, error) {
	var (
		finalPath   = w.cfg.ImagePath()
		partialPath = diskimage.PartialPath(finalPath)
	)

	err := w.steps.Assembler.Assemble(ctx, &diskimage.Request{
		VolumeName: w.cfg.VolumeName,
		SourceDir:  staging.Dir,
		OutputPath: partialPath,
		Format:     w.cfg.ImageFormat,
	})
	if err != nil {
		_ = os.Remove(partialPath)

		return nil, fmt.Errorf("create image: %w", err)
	}

	publication, err := w.steps.Publish(ctx, partialPath, finalPath)
	if err = w.advance(ctx, release.StageImageCreated, "publish image", err); err != nil {
		return nil, err
	}

	return publication, nil
}

// manifest describes the published image.
func (w *Workflow) manifest(ctx context.Context, publication *diskimage.Publication) *release.Manifest {
	meta := w.cfg.Bundle.Metadata

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Could not detect who runs the release", "error", err)

		actor = nil
	}

	return &release.Manifest{
		Name:        meta.Name,
		Version:     meta.Version,
		Identifier:  meta.Identifier,
		Variant:     w.cfg.Variant,
		Image:       filepath.Base(publication.Path),
		Checksum:    base64.StdEncoding.EncodeToString(publication.Checksum),
		Size:        publication.Size,
		HumanSize:   units.HumanSize(float64(publication.Size)),
		BuiltAt:     w.now().UTC(),
		BuiltBy:     actor,
		ToolVersion: version.Version,
	}
}

// advance wraps a step error with its name, or moves the machine to the next stage.
func (w *Workflow) advance(ctx context.Context, to release.Stage, step string, stepErr error) error {
	if stepErr != nil {
		return fmt.Errorf("%s: %w", step, stepErr)
	}

	if err := w.machine.Advance(to); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Stage reached", "stage", to)

	return nil
}

// failedStage names the stage active when the run failed.
func (w *Workflow) failedStage() string {
	if stage, ok := w.machine.FailedFrom(); ok {
		return stage.String()
	}

	return w.machine.Current().String()
}

func (w *Workflow) stagingParent() string {
	if w.cfg.StagingParent == "" {
		return ""
	}

	return w.cfg.Resolve(w.cfg.StagingParent)
}
