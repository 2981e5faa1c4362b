package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/rwb-release/internal/config"
)

var (
	// force overwrites an existing configuration file.
	force bool

	errConfigExists = errors.New("configuration file already exists, use --force to overwrite")

	// initCmd writes the built-in configuration so it can be edited.
	initCmd = &cobra.Command{
		Use:       "init [pyinstaller|py2app]",
		Short:     "Write the default configuration file.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: config.Variants(),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultConfigFilename
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s: %w", path, errConfigExists)
			}

			cfg := config.Default()
			if len(args) > 0 {
				cfg.Variant = args[0]
			}

			if err := config.Save(path, cfg); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
}
