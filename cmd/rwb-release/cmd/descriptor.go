package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/service/bundler"
	"github.com/oshokin/rwb-release/internal/service/packager"
)

var (
	// asYAML prints the bundle descriptor itself instead of the rendered tool input.
	asYAML bool

	// descriptorCmd prints what the bundler would be given.
	descriptorCmd = &cobra.Command{
		Use:       "descriptor [pyinstaller|py2app]",
		Short:     "Print the rendered bundler descriptor.",
		Long:      "Prints the PyInstaller spec file or the py2app setup script rendered from the configured bundle descriptor.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: config.Variants(),
		RunE: func(cmd *cobra.Command, args []string) error {
			options := &packager.Options{ConfigPath: configPath}
			if len(args) > 0 {
				options.Variant = args[0]
			}

			cfg, err := packager.LoadConfig(options)
			if err != nil {
				return err
			}

			var out []byte
			if asYAML {
				out, err = yaml.Marshal(cfg.Bundle)
			} else {
				out, err = bundler.Render(cfg.Variant, cfg.ProjectDir, cfg.Bundle)
			}

			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	descriptorCmd.Flags().BoolVar(&asYAML, "yaml", false, "print the bundle descriptor as YAML")
}
