// Command docpreview sniffs and renders local files without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docpreview/internal/config"
	"docpreview/internal/logging"
	"docpreview/internal/preview"
	"docpreview/internal/sniff"
	"docpreview/internal/workspace"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          "docpreview",
		Short:        "Inspect and preview documents locally",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log render steps to stderr")

	root.AddCommand(newSniffCmd(), newRenderCmd(&verbose))
	return root
}

type sniffOutput struct {
	File               string `json:"file"`
	ContentType        string `json:"content_type"`
	Extension          string `json:"extension"`
	LogicalName        string `json:"logical_name"`
	ExtensionCorrected bool   `json:"extension_corrected"`
	Category           string `json:"category"`
}

func newSniffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sniff <file>...",
		Short: "Detect the real type of files from their content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				det, err := sniff.Detect(data, filepath.Base(path))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := enc.Encode(sniffOutput{
					File:               path,
					ContentType:        det.MIME,
					Extension:          det.Extension,
					LogicalName:        det.LogicalName(),
					ExtensionCorrected: det.Spoofed(),
					Category:           preview.Classify(det.MIME).Label(),
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newRenderCmd(verbose *bool) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Write a PNG preview of a file",
		Long: `Render a PNG preview the same way the server does.

Tool paths, DPI and timeout come from the usual environment variables
(PDFTOPPM_BIN, SOFFICE_BIN, PDF_RASTER_DPI, PREVIEW_TIMEOUT).

Examples:
  docpreview render report.pdf              # writes report.png
  docpreview render notes.txt -o - > a.png  # writes to stdout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := zapcore.WarnLevel
			if *verbose {
				level = zapcore.DebugLevel
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), level, cfg.Location())

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			det, err := sniff.Detect(data, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			ws, err := workspace.NewManager(cfg.Preview.TempRoot, logger)
			if err != nil {
				return err
			}
			res := preview.NewDefault(cfg.Preview, ws, logger).Render(cmd.Context(), preview.Input{
				Data:        data,
				ContentType: det.MIME,
				Name:        det.LogicalName(),
			})
			if res.Err != nil {
				logger.Warn("render_fallback", zap.String("state", string(res.State)), zap.Error(res.Err))
			}

			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".png"
			}
			if err := writeOutput(cmd.OutOrStdout(), out, res.PNG); err != nil {
				return err
			}
			if res.State != preview.StateRendered {
				return errors.New("wrote placeholder image: " + errText(res.Err))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", `Output path, "-" for stdout (default <file>.png)`)
	return cmd
}

func writeOutput(stdout io.Writer, path string, png []byte) error {
	if path == "-" {
		_, err := stdout.Write(png)
		return err
	}
	return os.WriteFile(path, png, 0o644)
}

func errText(err error) string {
	if err == nil {
		return "unsupported type"
	}
	return err.Error()
}
