// internal/reporting/text_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/diagnostic"
	"github.com/xkilldash9x/measurediff/internal/measure"
	"github.com/xkilldash9x/measurediff/internal/observability"
)

// Semantic colors. They only render when the output supports color.
var (
	colorError   = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorSuccess = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#7a869a")
)

// TextReporter renders reports as tables for a terminal.
type TextReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser
	logger *zap.Logger

	title  lipgloss.Style
	muted  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	bad    lipgloss.Style
	warn   lipgloss.Style
	good   lipgloss.Style
	border lipgloss.Style
}

// NewTextReporter creates a reporter that takes ownership of writer. Color is
// detected from writer, so files and pipes get plain text.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	re := lipgloss.NewRenderer(writer)
	return &TextReporter{
		writer: writer,
		logger: observability.GetLogger().Named("text_reporter"),
		title:  re.NewStyle().Bold(true),
		muted:  re.NewStyle().Foreground(colorMuted),
		header: re.NewStyle().Bold(true).Padding(0, 1),
		cell:   re.NewStyle().Padding(0, 1),
		bad:    re.NewStyle().Padding(0, 1).Foreground(colorError),
		warn:   re.NewStyle().Padding(0, 1).Foreground(colorWarning),
		good:   re.NewStyle().Padding(0, 1).Foreground(colorSuccess),
		border: re.NewStyle().Foreground(colorMuted),
	}
}

func (r *TextReporter) Write(report *diagnostic.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString(r.title.Render("measurediff report") + " " + r.muted.Render(report.RunID) + "\n")
	if report.Title != "" {
		fmt.Fprintf(&b, "page:   %s\n", report.Title)
	}
	if report.Source != "" {
		fmt.Fprintf(&b, "source: %s\n", report.Source)
	}
	b.WriteString(r.scaleLine(report.Scale) + "\n\n")

	if len(report.Components) > 0 {
		b.WriteString(r.componentTable(report.Components) + "\n\n")
	}
	if len(report.Columns) > 0 {
		b.WriteString(r.columnTable(report.Columns) + "\n\n")
	}
	if len(report.Warnings) > 0 {
		b.WriteString(r.title.Render("Warnings") + "\n")
		for _, w := range report.Warnings {
			line := fmt.Sprintf("  [%s] ", w.Code)
			if w.Key != "" {
				line += w.Key + ": "
			}
			b.WriteString(line + w.Message + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(summaryLine(report.Summary) + "\n")

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	r.logger.Debug("Wrote text report", zap.String("run_id", report.RunID))
	return nil
}

func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}

func (r *TextReporter) scaleLine(s diagnostic.ScaleOutcome) string {
	if !s.Resolved {
		return fmt.Sprintf("scale: %s (%s)", r.warn.UnsetPadding().Render("1.0 fallback"), s.Error)
	}
	line := fmt.Sprintf("scale: %.4g from %q", s.Factor, s.Transform)
	if s.Source != "" {
		line += " on " + s.Source
	}
	if !s.Uniform {
		line += " " + r.warn.UnsetPadding().Render("(non-uniform)")
	}
	return line
}

func (r *TextReporter) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.border).
		Headers(headers...)
}

func (r *TextReporter) componentTable(results []diagnostic.ComponentResult) string {
	styles := make([]lipgloss.Style, len(results))
	t := r.newTable("KEY", "MEASURED", "RENDERED", "DELTA", "ACCURACY", "DOMINANT", "STATUS")
	for i, res := range results {
		status := string(res.Status)
		if res.Status == diagnostic.StatusAmbiguous {
			status = fmt.Sprintf("ambiguous (%d)", len(res.Candidates))
		}
		if res.Discrepancy == nil {
			t.Row(res.Key.String(), "-", "-", "-", "-", "-", status)
			styles[i] = r.warn
			continue
		}
		d := res.Discrepancy
		t.Row(
			res.Key.String(),
			fmt.Sprintf("%.2f", d.Measured.TotalHeight),
			fmt.Sprintf("%.2f", d.Rendered.TotalHeight),
			fmt.Sprintf("%+.2f", d.Delta),
			string(d.Accuracy),
			fmt.Sprintf("%s %+.2f", d.Dominant, d.FieldDelta(d.Dominant)),
			status,
		)
		switch {
		case d.Accuracy != measure.AccuracyAccurate:
			styles[i] = r.bad
		case res.Status == diagnostic.StatusAmbiguous:
			styles[i] = r.warn
		default:
			styles[i] = r.good
		}
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return r.header
		}
		if row >= 0 && row < len(styles) && (col == 4 || col == 6) {
			return styles[row]
		}
		return r.cell
	})
	return t.String()
}

func (r *TextReporter) columnTable(columns []measure.ColumnOverrunReport) string {
	t := r.newTable("COLUMN", "HEIGHT", "BOTTOM", "OVERRUN", "FIRST OVERFLOW", "STATUS")
	for _, c := range columns {
		first, status := "-", "ok"
		if c.FirstOverflow >= 0 {
			first = fmt.Sprintf("entry %d", c.FirstOverflow)
		}
		if c.HasOverrun {
			status = "OVERRUN"
		}
		t.Row(
			fmt.Sprintf("%d", c.ColumnIndex),
			fmt.Sprintf("%.2f", c.ColumnLogicalHeight),
			fmt.Sprintf("%.2f", c.CumulativeContentBottom),
			fmt.Sprintf("%+.2f", c.Overrun),
			first,
			status,
		)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return r.header
		}
		if row >= 0 && row < len(columns) && col == 5 {
			if columns[row].HasOverrun {
				return r.bad
			}
			return r.good
		}
		return r.cell
	})
	return t.String()
}

func summaryLine(s diagnostic.Summary) string {
	return fmt.Sprintf("%d components: %d accurate, %d over-estimating, %d under-estimating, %d unmatched, %d ambiguous; %d columns, %d overrun",
		s.Components, s.Accurate, s.OverEstimating, s.UnderEstimating, s.Unmatched, s.Ambiguous, s.Columns, s.OverrunColumns)
}
