package commands

import (
	"fmt"
	"io"
	"os"

	"sealdrive/pkg/types"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var getOutput string

var getCmd = &cobra.Command{
	Use:   "get [cid]",
	Short: "Download and decrypt a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}

		bar := newProgressBar("Downloading " + types.ContentID(args[0]).Short())
		res, err := SD.Orchestrator.Download(cmd.Context(), Session, types.ContentID(args[0]), bar.report())
		bar.stop()
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		defer res.Release()

		// 默认保存为原文件名
		out := getOutput
		if out == "" {
			out = res.Name
		}
		if err := copyFile(res.Path, out); err != nil {
			return err
		}

		pterm.Success.Printfln("Saved %s (%s, %s)", out, formatSize(res.Size), res.MimeType)
		return nil
	},
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "output path (defaults to the original file name)")
	rootCmd.AddCommand(getCmd)
}
