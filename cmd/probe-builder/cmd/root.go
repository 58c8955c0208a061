package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/logger"
	"github.com/oshokin/probe-bundler/internal/service/builder"
	"github.com/oshokin/probe-bundler/internal/version"
)

var (
	// specPath is the path to the bundle spec YAML file.
	specPath string

	// outputDir overrides the spec's output directory.
	outputDir string

	// skipDeps skips the dependency installation step.
	skipDeps bool

	// skipSmoke skips the post-build launch check.
	skipSmoke bool

	// logLevel is the minimum level for console logging.
	logLevel string

	// rootCmd represents the base command running the full build pipeline.
	rootCmd = &cobra.Command{
		Use:   "probe-builder",
		Short: "Build a single-file bundle of the probe tool",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &builder.Options{
				SpecPath:  specPath,
				OutputDir: outputDir,
				SkipDeps:  skipDeps,
				SkipSmoke: skipSmoke,
			}

			return builder.Run(ctx, options)
		},
	}
)

// Execute runs the probe-builder CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "override the output directory")
	rootCmd.Flags().BoolVar(&skipDeps, "skip-deps", false, "skip dependency installation")
	rootCmd.Flags().BoolVar(&skipSmoke, "skip-smoke", false, "skip the post-build smoke test")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
}
