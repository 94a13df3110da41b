package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sealdrive/pkg/core"
	"sealdrive/pkg/ignore"
	"sealdrive/pkg/orchestrator"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var uploadMimeType string

var uploadCmd = &cobra.Command{
	Use:   "upload [file|dir]",
	Short: "Encrypt a file, store it and register it on-chain",
	Long: `Encrypt and upload a single file, or every file under a directory.
Directory uploads skip paths matched by .sdignore and the built-in rules.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		path := args[0]

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return uploadOne(cmd, path)
		}

		// 目录: 逐个上传，单个失败不影响其余文件
		files, err := ignore.Collect(path)
		if err != nil {
			return fmt.Errorf("scan %s: %w", path, err)
		}
		if len(files) == 0 {
			pterm.Info.Printfln("Nothing to upload in %s", path)
			return nil
		}

		var errs []error
		for _, f := range files {
			if err := uploadOne(cmd, f); err != nil {
				pterm.Error.Printfln("%s: %v", f, err)
				errs = append(errs, fmt.Errorf("%s: %w", f, err))
			}
		}
		pterm.Info.Printfln("%d/%d files uploaded", len(files)-len(errs), len(files))
		return errors.Join(errs...)
	},
}

func uploadOne(cmd *cobra.Command, path string) error {
	// 1. 读取文件 (大小上限由编排器校验)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	// 2. 上传 + 注册
	name := filepath.Base(path)
	bar := newProgressBar("Uploading " + name)
	rec, err := SD.Orchestrator.Upload(cmd.Context(), Session, orchestrator.UploadRequest{
		Name:     name,
		MimeType: uploadMimeType,
		Data:     data,
	}, bar.report())
	bar.stop()
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	printUploaded(rec)
	return nil
}

func printUploaded(rec core.FileRecord) {
	mode := "self-funded"
	if rec.Sponsored {
		mode = "sponsored"
	}
	pterm.Success.Printfln("Uploaded %s (%s)", rec.Name, formatSize(rec.Size))
	pterm.Info.Printfln("CID: %s", rec.ContentID)
	pterm.Info.Printfln("Tx:  %s (%s)", rec.TxHash, mode)
}

func init() {
	uploadCmd.Flags().StringVar(&uploadMimeType, "type", "", "declared MIME type (detected when empty)")
	rootCmd.AddCommand(uploadCmd)
}
