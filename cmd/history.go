// cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/config"
	"github.com/xkilldash9x/measurediff/internal/observability"
	"github.com/xkilldash9x/measurediff/internal/reporting"
	"github.com/xkilldash9x/measurediff/internal/store"
)

const defaultHistoryLimit = 10

func newHistoryCmd(provider storeProvider) *cobra.Command {
	var (
		source string
		limit  int
		format string
	)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted diagnostic runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runHistory(ctx, observability.GetLogger(), cfg, source, limit, format, provider, cmd.OutOrStdout())
		},
	}

	historyCmd.Flags().StringVar(&source, "source", "", "Only list runs of this page URL or snapshot")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum number of runs to list")
	historyCmd.Flags().StringVarP(&format, "format", "f", reporting.FormatText, "Output format: text or json")
	return historyCmd
}

func runHistory(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	source string,
	limit int,
	format string,
	provider storeProvider,
	out io.Writer,
) error {
	if format != reporting.FormatText && format != reporting.FormatJSON {
		return fmt.Errorf("unsupported history format: %s", format)
	}

	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	runs, err := s.RecentRuns(ctx, source, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	logger.Debug("Loaded run history.", zap.Int("runs", len(runs)), zap.String("source", source))

	if format == reporting.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded.")
		return err
	}
	_, err = fmt.Fprintln(out, historyTable(runs, out))
	return err
}

func historyTable(runs []store.RunSummary, out io.Writer) string {
	re := lipgloss.NewRenderer(out)
	cell := re.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := "clean"
		if !r.Clean {
			status = "discrepancies"
		}
		rows = append(rows, []string{
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			r.RunID,
			r.Source,
			strconv.FormatFloat(r.ScaleFactor, 'f', 3, 64),
			fmt.Sprintf("%d/%d", r.Summary.Accurate, r.Summary.Components),
			strconv.Itoa(r.Summary.OverrunColumns),
			status,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(re.NewStyle()).
		Headers("STARTED", "RUN", "SOURCE", "SCALE", "ACCURATE", "OVERRUNS", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style { return cell }).
		String()
}
