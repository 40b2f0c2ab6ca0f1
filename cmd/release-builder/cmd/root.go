package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-builder/internal/logger"
	"github.com/oshokin/release-builder/internal/service/builder"
	"github.com/oshokin/release-builder/internal/version"
)

var (
	// configPath to the release YAML file; empty selects the built-in matrix.
	configPath string
	// logLevel is the minimum level of printed log records.
	logLevel string

	// rootCmd cross-compiles, archives and publishes the configured program.
	rootCmd = &cobra.Command{
		Use:           "release-builder",
		Short:         "Cross-compile a program and package one archive per target",
		Long:          "Builds the program for the host to discover its version, then cross-compiles it for every configured os/arch pair, packs each binary into a zip or tar.gz archive and moves the archive into the distribution directory.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return builder.Run(cmd.Context(), &builder.Options{
				ConfigPath: configPath,
			})
		},
	}
)

// Execute runs the release-builder CLI and exits with non-zero status on error.
func Execute() {
	// Setup graceful shutdown handling; cancellation reaches the running toolchain.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newInitCommand())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.ErrorKV(ctx, "Release failed", "error", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above.
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to release configuration file (built-in qtcdbg matrix when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
