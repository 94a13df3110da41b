package commands

import (
	"fmt"

	"sealdrive/pkg/core"
	"sealdrive/pkg/types"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [cid]",
	Short: "Unpin a file and remove it from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		cid := types.ContentID(args[0])

		// 名字只用于提示，列表里没有也继续 (存储网络才是判断依据)
		name := cid.Short()
		if rec, ok := core.Find(Session.Files(), cid); ok {
			name = rec.Name
		}

		bar := newProgressBar("Deleting " + name)
		err := SD.Orchestrator.Delete(cmd.Context(), Session, cid, bar.report())
		bar.stop()
		if err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}

		pterm.Success.Printfln("Deleted %s", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
