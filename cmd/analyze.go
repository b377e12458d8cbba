// cmd/analyze.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/browser/capture"
	"github.com/xkilldash9x/measurediff/internal/config"
	"github.com/xkilldash9x/measurediff/internal/diagnostic"
	"github.com/xkilldash9x/measurediff/internal/measure"
	"github.com/xkilldash9x/measurediff/internal/observability"
	"github.com/xkilldash9x/measurediff/internal/reporting"
	"github.com/xkilldash9x/measurediff/internal/snapshot"
	"github.com/xkilldash9x/measurediff/internal/store"
)

// errDiscrepancies is returned when --fail-on-discrepancy is set and the report
// is not clean. The report itself has already been written.
var errDiscrepancies = errors.New("discrepancies found")

// runStore is the part of the store the commands use.
type runStore interface {
	EnsureSchema(ctx context.Context) error
	PersistReport(ctx context.Context, report *diagnostic.Report) error
	RecentRuns(ctx context.Context, source string, limit int) ([]store.RunSummary, error)
}

// storeProvider creates a runStore. Tests inject a mock instead of a live database.
type storeProvider interface {
	// Create returns the store, a cleanup function releasing its resources, and
	// an error if the store could not be created.
	Create(ctx context.Context, cfg config.Interface) (runStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the PostgreSQL-backed provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to PostgreSQL and makes sure the schema exists.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (runStore, func(), error) {
	logger := observability.GetLogger()
	dbCfg := cfg.Database()
	if dbCfg.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (%s_DATABASE_URL)", config.EnvPrefix)
	}

	connectCtx := ctx
	if dbCfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, dbCfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.New(connectCtx, dbCfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := store.New(connectCtx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := s.EnsureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}

// pageCapturer renders a live page into a snapshot.
type pageCapturer interface {
	Capture(ctx context.Context, url string) (*capture.Result, error)
}

// newCapturer is swapped out in tests so no browser is needed.
var newCapturer = func(b config.BrowserConfig, s config.SnapshotConfig, logger *zap.Logger) pageCapturer {
	return capture.New(b, s, logger)
}

// analyzeOptions holds the analyze flags.
type analyzeOptions struct {
	SnapshotPath string
	URL          string
	Keys         []string
	Persist      bool
}

func newAnalyzeCmd(provider storeProvider) *cobra.Command {
	var (
		opts         analyzeOptions
		format       string
		output       string
		heightSource string
		failOnDiff   bool
		headful      bool
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare the measurement layer with the visible layer",
		Long: `Loads a snapshot (or captures a live page), measures every keyed component
in both layers, and reports which components were mis-measured and which
columns overrun their rendered height.`,
		Example: `  measurediff analyze --snapshot page.html
  measurediff analyze --url http://localhost:5173/projects/42 --format sarif -o out.sarif
  measurediff analyze --snapshot page.html --keys goblin:traits:0:2:2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("format") {
				cfg.SetReportFormat(format)
			}
			if flags.Changed("output") {
				cfg.SetReportOutput(output)
			}
			if flags.Changed("column-height-source") {
				cfg.SetColumnHeightSource(heightSource)
			}
			if flags.Changed("headful") {
				cfg.SetBrowserHeadless(!headful)
			}
			failOnDiscrepancy := cfg.Report().FailOnDiscrepancy
			if flags.Changed("fail-on-discrepancy") {
				failOnDiscrepancy = failOnDiff
			}

			report, err := runAnalyze(ctx, logger, cfg, opts, provider, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if failOnDiscrepancy && !report.Clean() {
				return fmt.Errorf("%w: %d of %d components inaccurate, %d overrunning columns", errDiscrepancies,
					report.Summary.Components-report.Summary.Accurate, report.Summary.Components, report.Summary.OverrunColumns)
			}
			return nil
		},
	}

	f := analyzeCmd.Flags()
	f.StringVarP(&opts.SnapshotPath, "snapshot", "s", "", "Path to a captured HTML snapshot")
	f.StringVarP(&opts.URL, "url", "u", "", "URL of a live page to capture and analyze")
	f.StringSliceVarP(&opts.Keys, "keys", "k", nil, "Only analyze these measurement keys (component:kind:start:count:total)")
	f.BoolVar(&opts.Persist, "persist", false, "Store the report in the database")
	f.StringVarP(&format, "format", "f", reporting.FormatText, "Report format: text, json or sarif")
	f.StringVarP(&output, "output", "o", "", "Report output path (default stdout)")
	f.StringVar(&heightSource, "column-height-source", string(diagnostic.ColumnHeightRendered), "Entry heights stacked in the column check: rendered or measured")
	f.BoolVar(&failOnDiff, "fail-on-discrepancy", false, "Exit non-zero when the report is not clean")
	f.BoolVar(&headful, "headful", false, "Show the browser window during capture")
	analyzeCmd.MarkFlagsMutuallyExclusive("snapshot", "url")
	analyzeCmd.MarkFlagsOneRequired("snapshot", "url")

	return analyzeCmd
}

// runAnalyze contains the testable core of the analyze command. Reports that go
// to stdout are written to out.
func runAnalyze(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	opts analyzeOptions,
	provider storeProvider,
	out io.Writer,
) (*diagnostic.Report, error) {
	// Parse keys first so a typo fails before a browser is started.
	keys, err := parseKeys(opts.Keys)
	if err != nil {
		return nil, err
	}

	doc, source, err := loadDocument(ctx, logger, cfg, opts)
	if err != nil {
		return nil, err
	}

	measurement, visible, err := doc.Layers()
	if err != nil {
		var missing *measure.MissingLayerError
		if errors.As(err, &missing) {
			logger.Error("Snapshot does not contain both layers.", zap.String("layer", missing.Layer))
		}
		return nil, fmt.Errorf("failed to locate layers in %s: %w", source, err)
	}

	diagOpts := diagnosticOptions(cfg.Diagnostics(), logger)
	var report *diagnostic.Report
	if len(keys) > 0 {
		report, err = diagnostic.RunKeys(measurement, visible, keys, diagOpts)
	} else {
		report, err = diagnostic.Run(measurement, visible, diagOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("diagnostic run failed: %w", err)
	}
	report.Source = source
	report.Title = doc.Title()

	if err := writeReport(cfg.Report(), report, out); err != nil {
		return nil, err
	}

	if opts.Persist {
		if err := persistReport(ctx, logger, cfg, provider, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func parseKeys(raw []string) ([]measure.MeasurementKey, error) {
	keys := make([]measure.MeasurementKey, 0, len(raw))
	for _, s := range raw {
		key, err := measure.ParseKey(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid --keys value: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// loadDocument reads the snapshot file or captures the live page. The returned
// source is the page URL when known, otherwise the snapshot path.
func loadDocument(ctx context.Context, logger *zap.Logger, cfg config.Interface, opts analyzeOptions) (*snapshot.Document, string, error) {
	snapCfg := cfg.Snapshot()
	snapOpts := snapshot.Options{
		MeasurementLayerXPath: snapCfg.MeasurementLayerXPath,
		VisibleLayerXPath:     snapCfg.VisibleLayerXPath,
		RectAttribute:         snapCfg.RectAttribute,
		Logger:                logger,
	}

	if opts.URL != "" {
		res, err := newCapturer(cfg.Browser(), snapCfg, logger).Capture(ctx, opts.URL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to capture page: %w", err)
		}
		doc, err := snapshot.Load(strings.NewReader(res.HTML), snapOpts)
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse captured page: %w", err)
		}
		return doc, res.URL, nil
	}

	if opts.SnapshotPath == "" {
		return nil, "", errors.New("either --snapshot or --url is required")
	}
	doc, err := snapshot.LoadFile(opts.SnapshotPath, snapOpts)
	if err != nil {
		return nil, "", err
	}
	if u, ok := doc.Meta(snapshot.MetaSourceURL); ok && u != "" {
		return doc, u, nil
	}
	if abs, err := filepath.Abs(opts.SnapshotPath); err == nil {
		return doc, "file://" + filepath.ToSlash(abs), nil
	}
	return doc, opts.SnapshotPath, nil
}

// diagnosticOptions maps the configured diagnostics onto run options.
func diagnosticOptions(d config.DiagnosticsConfig, logger *zap.Logger) diagnostic.Options {
	return diagnostic.Options{
		KeyAttribute:       d.KeyAttribute,
		ColumnSelector:     d.ColumnSelector,
		EntrySelector:      d.EntrySelector,
		HeaderSelector:     d.HeaderSelector,
		ItemSelector:       d.ItemSelector,
		ListSelectors:      d.ListSelectors,
		EntrySpacing:       d.EntrySpacing,
		OverrunEpsilon:     d.OverrunEpsilon,
		AccuracyTolerance:  d.AccuracyTolerance,
		ColumnHeightSource: diagnostic.ColumnHeightSource(d.ColumnHeightSource),
		Logger:             logger,
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeReport(cfg config.ReportConfig, report *diagnostic.Report, out io.Writer) error {
	var (
		reporter reporting.Reporter
		err      error
	)
	if cfg.Output == "" || cfg.Output == "stdout" {
		reporter, err = reporting.NewWithWriter(cfg.Format, nopCloser{out}, Version)
	} else {
		reporter, err = reporting.New(cfg.Format, cfg.Output, Version)
	}
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}

	if err := reporter.Write(report); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}
	return nil
}

func persistReport(ctx context.Context, logger *zap.Logger, cfg config.Interface, provider storeProvider, report *diagnostic.Report) error {
	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := s.PersistReport(ctx, report); err != nil {
		return fmt.Errorf("failed to persist report %s: %w", report.RunID, err)
	}
	logger.Info("Report persisted.", zap.String("run_id", report.RunID))
	return nil
}
