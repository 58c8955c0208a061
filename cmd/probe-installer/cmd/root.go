package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/probe-bundler/internal/service/installer"
	"github.com/oshokin/probe-bundler/internal/version"
)

// rootCmd represents the base command installing a built bundle.
var rootCmd = &cobra.Command{
	Use:   "probe-installer [source] [destination]",
	Short: "Install a built bundle from a local or HTTP folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		options := &installer.Options{
			Source:      args[0],
			Destination: args[1],
		}

		return installer.Run(ctx, options)
	},
}

// Execute runs the probe-installer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
