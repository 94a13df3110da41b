package commands

import (
	"fmt"
	"io"
	"os"

	"sealdrive/pkg/types"

	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view [cid]",
	Short: "Decrypt a file and write its content to stdout",
	Long:  `Decrypt a file and print it. Binary files can be redirected: sd view <cid> > out.bin`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}

		// 进度条会污染 stdout，这里不显示
		res, err := SD.Orchestrator.View(cmd.Context(), Session, types.ContentID(args[0]), nil)
		if err != nil {
			return fmt.Errorf("view failed: %w", err)
		}
		defer res.Release()

		f, err := os.Open(res.Path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(cmd.OutOrStdout(), f)
		return err
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
