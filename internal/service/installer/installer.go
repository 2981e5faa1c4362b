package installer

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/logger"
	"github.com/oshokin/rwb-release/internal/service/common"
)

var errNoPython = errors.New("python interpreter must be provided")

// Installer installs the runtime package and the bundler tool with pip.
type Installer struct {
	runner     common.Runner
	python     string
	pkg        string
	variant    string
	projectDir string
}

// New returns an installer for the configured interpreter, package and variant.
func New(runner common.Runner, cfg *config.Config) *Installer {
	return &Installer{
		runner:     runner,
		python:     cfg.Python,
		pkg:        cfg.Package,
		variant:    cfg.Variant,
		projectDir: cfg.ProjectDir,
	}
}

// Install runs pip for the application package (without its dependencies,
// which the environment already satisfies) and then for the bundler tool.
// The first failing command aborts.
func (i *Installer) Install(ctx context.Context) error {
	if i.python == "" {
		return errNoPython
	}

	for _, cmd := range i.Commands() {
		logger.InfoKV(ctx, "Installing", "requirement", cmd.Args[len(cmd.Args)-1])

		if err := i.runner.Run(ctx, cmd); err != nil {
			return fmt.Errorf("install %s: %w", cmd.Args[len(cmd.Args)-1], err)
		}
	}

	return nil
}

// Commands lists the pip invocations in execution order.
func (i *Installer) Commands() []common.Command {
	commands := []common.Command{
		{
			Name: i.python,
			Args: []string{"-m", "pip", "install", "--no-input", "--no-deps", i.pkg},
			Dir:  i.projectDir,
		},
	}

	if tool := toolRequirement(i.variant); tool != "" {
		commands = append(commands, common.Command{
			Name: i.python,
			Args: []string{"-m", "pip", "install", "--no-input", tool},
			Dir:  i.projectDir,
		})
	}

	return commands
}

// toolRequirement is the pip requirement of the bundler for a variant.
func toolRequirement(variant string) string {
	switch variant {
	case config.VariantPyInstaller:
		return "pyinstaller"
	case config.VariantPy2App:
		return "py2app"
	default:
		return ""
	}
}
