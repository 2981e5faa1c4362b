package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/logger"
	"github.com/oshokin/rwb-release/internal/service/common"
	"github.com/oshokin/rwb-release/internal/service/packager"
	"github.com/oshokin/rwb-release/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to the console.
	logLevel string
	// envFile with KEY=VALUE pairs passed to external tools.
	envFile string
	// keepStaging leaves the staging directory on disk.
	keepStaging bool
	// skipInstall does not run pip before building.
	skipInstall bool

	// rootCmd represents the base command running the release workflow.
	rootCmd = &cobra.Command{
		Use:   "rwb-release [pyinstaller|py2app]",
		Short: "Build the RWB application bundle and package it into a disk image.",
		Long: `Builds the RWB application bundle and packages it into a single compressed disk image.

The workflow installs the application package and the bundler, removes stale build
output, builds and verifies the bundle, stages it next to an Applications shortcut
and creates <Name>-<Version>.dmg in the output directory, replacing an earlier image.
Any failing step aborts the run; the exit code is the failing tool's exit code when known.
The bundler variant defaults to the configured one (pyinstaller without a configuration file).`,
		Args:         cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs:    config.Variants(),
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use variant argument if provided, otherwise rely on config.
			var variant string
			if len(args) > 0 {
				variant = args[0]
			}

			options := &packager.Options{
				ConfigPath:  configPath,
				Variant:     variant,
				EnvFile:     envFile,
				KeepStaging: keepStaging,
				SkipInstall: skipInstall,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the rwb-release CLI and exits with the failing tool's status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(common.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.Flags().StringVar(&envFile, "env-file", "", "file with KEY=VALUE pairs passed to external tools")
	rootCmd.Flags().BoolVar(&keepStaging, "keep-staging", false, "keep the staging directory for inspection")
	rootCmd.Flags().BoolVar(&skipInstall, "skip-install", false, "do not install the package and bundler with pip")

	rootCmd.AddCommand(initCmd, descriptorCmd)
}
