// Package cmd - serve command
package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"housecost/api"
	"housecost/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the costing endpoints:

  GET  /costing/house/template
  POST /costing/house/l1-optimizer
  /api/v1/optimize and /api/v1/runs

The catalogue is reloaded when its file changes (catalogue.watch).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		appConfig.Server.Addr = serveAddr
	}
	if !verbose && cfgFile == "" {
		// request logs are the point of a server
		if err := logging.SetLevel("info"); err != nil {
			return err
		}
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return api.Run(ctx, appConfig, version, logging.Logger)
}
