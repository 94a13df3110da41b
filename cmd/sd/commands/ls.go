package commands

import (
	"sealdrive/pkg/core"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var lsRefresh bool

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List uploaded files (newest first)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}

		files := Session.Files()
		if lsRefresh {
			var err error
			if files, err = SD.Orchestrator.Refresh(cmd.Context(), Session); err != nil {
				return err
			}
		}

		if len(files) == 0 {
			pterm.Info.Println("No files yet. Use 'sd upload <file>' to add one.")
			return nil
		}
		return pterm.DefaultTable.WithHasHeader(true).WithData(fileTable(files)).Render()
	},
}

func fileTable(files []core.FileRecord) pterm.TableData {
	data := pterm.TableData{{"CID", "Name", "Size", "Type", "Owner", "Uploaded"}}
	for _, f := range files {
		data = append(data, []string{
			f.ContentID.String(),
			f.Name,
			formatSize(f.Size),
			f.MimeType,
			shortAddress(f.Owner),
			f.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return data
}

func init() {
	lsCmd.Flags().BoolVarP(&lsRefresh, "refresh", "r", false, "reload the listing from the registry")
	rootCmd.AddCommand(lsCmd)
}
