// cmd/capture.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/config"
	"github.com/xkilldash9x/measurediff/internal/observability"
)

func newCaptureCmd() *cobra.Command {
	var (
		url     string
		output  string
		headful bool
	)

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a live page as an offline snapshot",
		Long: `Renders the page in Chrome, waits for both layers, and writes a self contained
HTML snapshot with every element's box stamped on it. The snapshot can be
analyzed later with 'measurediff analyze --snapshot'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headful") {
				cfg.SetBrowserHeadless(!headful)
			}
			return runCapture(ctx, observability.GetLogger(), cfg, url, output, cmd.OutOrStdout())
		},
	}

	captureCmd.Flags().StringVarP(&url, "url", "u", "", "URL of the page to capture (required)")
	_ = captureCmd.MarkFlagRequired("url")
	captureCmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot file path (default stdout)")
	captureCmd.Flags().BoolVar(&headful, "headful", false, "Show the browser window during capture")
	return captureCmd
}

func runCapture(ctx context.Context, logger *zap.Logger, cfg config.Interface, url, output string, out io.Writer) error {
	res, err := newCapturer(cfg.Browser(), cfg.Snapshot(), logger).Capture(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to capture page: %w", err)
	}

	if output == "" {
		_, err := io.WriteString(out, res.HTML)
		return err
	}
	if err := os.WriteFile(output, []byte(res.HTML), 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot to %s: %w", output, err)
	}
	logger.Info("Snapshot written.",
		zap.String("url", res.URL),
		zap.String("path", output),
		zap.Int("bytes", len(res.HTML)))
	return nil
}
