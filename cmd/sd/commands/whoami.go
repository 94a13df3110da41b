package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signing identity and the derived account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		id := Session.Identity

		mode := "self-funded only"
		if id.HasDerived() {
			mode = "sponsored (self-funded fallback)"
		}
		return pterm.DefaultTable.WithData(pterm.TableData{
			{"Signer", id.Signing.Hex()},
			{"Account", id.Query.Hex()},
			{"Chain", SD.ChainID.String()},
			{"Registry", SD.Registry.Hex()},
			{"Mode", mode},
			{"Files", strconv.Itoa(len(Session.Files()))},
		}).Render()
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
