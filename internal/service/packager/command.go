package packager

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/logger"
	"github.com/oshokin/rwb-release/internal/service/common"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to the release configuration (defaults to rwb-release.yaml when present).
	ConfigPath string
	// Variant overrides the configured bundler variant when set.
	Variant string
	// EnvFile overrides the configured env file passed to external tools.
	EnvFile string
	// KeepStaging leaves the staging directory on disk for inspection.
	KeepStaging bool
	// SkipInstall does not run pip before building.
	SkipInstall bool
}

// Run loads the configuration, guards the project against a second run and
// executes the release workflow.
func Run(ctx context.Context, opts *Options) (err error) {
	if opts == nil {
		opts = new(Options)
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "rwb-release")

	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "variant", cfg.Variant)

	env, err := common.LoadEnvFile(cfg.EnvFilePath())
	if err != nil {
		return err
	}

	runner := common.NewExecRunner(
		common.WithEnv(env),
		common.WithTimeout(cfg.ToolTimeout),
	)

	steps, err := DefaultSteps(cfg, runner)
	if err != nil {
		return err
	}

	workflow, err := NewWorkflow(cfg, steps, WithSkipInstall(opts.SkipInstall))
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	marker, err := common.AcquireRunMarker(ctx, cfg.MarkerPath())
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, marker.Release())
	}()

	if _, err = workflow.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	return nil
}

// LoadConfig reads the configuration named by opts and applies the overrides.
func LoadConfig(opts *Options) (*config.Config, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Variant != "" {
		cfg.Variant = opts.Variant
	}

	if opts.EnvFile != "" {
		cfg.EnvFile = opts.EnvFile
	}

	if opts.KeepStaging {
		cfg.KeepStaging = true
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
