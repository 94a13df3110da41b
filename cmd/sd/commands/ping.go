package commands

import (
	"context"
	"fmt"
	"time"

	"sealdrive/pkg/client"
	"sealdrive/pkg/config"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var pingAddr string

var pingCmd = &cobra.Command{
	Use:         "ping",
	Short:       "Check whether a running gateway is serving",
	Annotations: map[string]string{annotationNoSession: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := pingAddr
		if addr == "" {
			addr = config.Current().Server.GRPCAddr
		}
		c, err := client.New(addr)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		ok, err := c.Serving(ctx)
		if err != nil {
			return fmt.Errorf("gateway %s unreachable: %w", addr, err)
		}
		if !ok {
			return fmt.Errorf("gateway %s is not serving", addr)
		}
		pterm.Success.Printfln("Gateway %s is serving", addr)
		return nil
	},
}

func init() {
	pingCmd.Flags().StringVar(&pingAddr, "addr", "", "gateway gRPC address (defaults to server.grpc_addr)")
	rootCmd.AddCommand(pingCmd)
}
