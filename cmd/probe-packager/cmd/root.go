package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/service/packager"
	"github.com/oshokin/probe-bundler/internal/version"
)

var (
	// specPath is the path to the bundle spec YAML file.
	specPath string

	// rootCmd represents the base command for the packaging step alone.
	rootCmd = &cobra.Command{
		Use:   "probe-packager",
		Short: "Assemble the single-file bundle without installing dependencies",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			spec, err := config.Load(specPath)
			if err != nil {
				return err
			}

			_, err = packager.Run(ctx, &packager.Options{Spec: spec})

			return err
		},
	}
)

// Execute runs the probe-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&specPath, "config", "c", config.DefaultSpecFilename, "path to bundle spec file")
}
