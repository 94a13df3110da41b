package commands

import (
	"os/signal"
	"syscall"

	"sealdrive/pkg/config"
	"sealdrive/pkg/server"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP/gRPC gateway for this wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := config.Current().Server
		pterm.Info.Printfln("Gateway listening on %s (gRPC %s)", cfg.HTTPAddr, cfg.GRPCAddr)
		return server.Gateway(cfg, SD.Orchestrator, Session, SD.Log).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
