package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/release-builder/internal/config"
	"github.com/oshokin/release-builder/internal/logger"
)

// newInitCommand creates the `init` subcommand writing the built-in config as YAML.
func newInitCommand() *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the built-in release configuration to a YAML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			if err := config.WriteDefault(path, force); err != nil {
				return err
			}

			logger.InfoKV(cmd.Context(), "Release configuration written", "path", path)

			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return initCmd
}
