// internal/reporting/sarif_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/diagnostic"
	"github.com/xkilldash9x/measurediff/internal/measure"
	"github.com/xkilldash9x/measurediff/internal/observability"
	"github.com/xkilldash9x/measurediff/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "measurediff"
	ToolInfoURI  = "https://github.com/xkilldash9x/measurediff"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// Rule IDs.
const (
	RuleColumnOverrun       = "column-overrun"
	RuleHeightUnderEstimate = "height-under-estimate"
	RuleHeightOverEstimate  = "height-over-estimate"
	RuleEntryNotFound       = "entry-not-found"
	RuleAmbiguousMatch      = "ambiguous-match"
)

type ruleDef struct {
	id, name, short, full string
	level                 sarif.Level
}

var rules = []ruleDef{
	{RuleColumnOverrun, "ColumnOverrun", "Column content overruns the column",
		"The stacked entries of a rendered column, including inter-entry spacing, extend past the column's height by more than the overrun epsilon.",
		sarif.LevelError},
	{RuleHeightUnderEstimate, "HeightUnderEstimate", "Measured height is too small",
		"The rendered component is taller than the measurement layer predicted, so pagination placed too much content on the page.",
		sarif.LevelWarning},
	{RuleHeightOverEstimate, "HeightOverEstimate", "Measured height is too large",
		"The rendered component is shorter than the measurement layer predicted, so pagination left unused space.",
		sarif.LevelWarning},
	{RuleEntryNotFound, "EntryNotFound", "Component could not be located",
		"No node matched the measurement key in one of the layers, so the component was not compared.",
		sarif.LevelNote},
	{RuleAmbiguousMatch, "AmbiguousMatch", "Component matched several rendered entries",
		"The structural lookup in the visible layer matched more than one entry; the first was compared.",
		sarif.LevelNote},
}

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// Every Write adds results to a single run; Close encodes the log. It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure.
	mu        sync.Mutex
	ruleIndex map[string]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	driver := &sarif.ToolComponent{
		Name:           ToolName,
		Version:        pString(toolVersion),
		InformationURI: pString(ToolInfoURI),
		Rules:          make([]*sarif.ReportingDescriptor, 0, len(rules)),
	}
	index := make(map[string]int, len(rules))
	for i, def := range rules {
		driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
			ID:                   def.id,
			Name:                 pString(def.name),
			ShortDescription:     &sarif.MultiformatMessageString{Text: pString(def.short)},
			FullDescription:      &sarif.MultiformatMessageString{Text: pString(def.full)},
			DefaultConfiguration: &sarif.ReportingConfiguration{Level: def.level},
			Properties:           &sarif.PropertyBag{"tags": []string{"layout", "pagination"}},
		})
		index[def.id] = i
	}

	return &SARIFReporter{
		writer: writer,
		logger: observability.GetLogger().Named("sarif_reporter"),
		log: &sarif.Log{
			Version: SARIFVersion,
			Schema:  SARIFSchema,
			Runs: []*sarif.Run{{
				Tool: &sarif.Tool{Driver: driver},
				// Initialize empty slices (not nil) for proper JSON marshalling
				Results: []*sarif.Result{},
			}},
		},
		ruleIndex: index,
	}
}

// Write converts a diagnostic report into SARIF results.
func (r *SARIFReporter) Write(report *diagnostic.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	before := len(run.Results)

	if run.AutomationDetails == nil {
		run.AutomationDetails = &sarif.RunAutomation{GUID: pString(report.RunID)}
	}
	run.Invocations = append(run.Invocations, r.invocation(report))

	for _, c := range report.Components {
		run.Results = append(run.Results, r.componentResults(report, c)...)
	}
	for _, col := range report.Columns {
		if !col.HasOverrun {
			continue
		}
		msg := fmt.Sprintf("Column %d overruns by %.2f logical px (content bottom %.2f, column height %.2f)",
			col.ColumnIndex, col.Overrun, col.CumulativeContentBottom, col.ColumnLogicalHeight)
		if col.FirstOverflow >= 0 {
			msg += fmt.Sprintf("; entry %d is the first to cross the edge", col.FirstOverflow)
		}
		run.Results = append(run.Results, r.result(RuleColumnOverrun, msg,
			location(report.Source, fmt.Sprintf("column[%d]", col.ColumnIndex), "column"),
			sarif.PropertyBag{
				"run_id":         report.RunID,
				"overrun":        col.Overrun,
				"first_overflow": col.FirstOverflow,
			}))
	}

	r.logger.Debug("Wrote diagnostic results to SARIF buffer",
		zap.String("run_id", report.RunID),
		zap.Int("results", len(run.Results)-before))
	return nil
}

func (r *SARIFReporter) componentResults(report *diagnostic.Report, c diagnostic.ComponentResult) []*sarif.Result {
	key := c.Key.String()
	loc := location(report.Source, key, "component")
	var out []*sarif.Result

	switch c.Status {
	case diagnostic.StatusNotFound:
		return append(out, r.result(RuleEntryNotFound, c.Error, loc, sarif.PropertyBag{
			"run_id":     report.RunID,
			"candidates": c.Candidates,
		}))
	case diagnostic.StatusAmbiguous:
		out = append(out, r.result(RuleAmbiguousMatch, c.Error, loc, sarif.PropertyBag{
			"run_id":     report.RunID,
			"candidates": c.Candidates,
		}))
	}

	d := c.Discrepancy
	if d == nil || d.Accuracy == measure.AccuracyAccurate {
		return out
	}
	rule := RuleHeightUnderEstimate
	if d.Accuracy == measure.AccuracyOverEstimating {
		rule = RuleHeightOverEstimate
	}
	msg := fmt.Sprintf("%s: measured %.2f, rendered %.2f (delta %+.2f logical px); dominant contributor %s (%+.2f)",
		key, d.Measured.TotalHeight, d.Rendered.TotalHeight, d.Delta, d.Dominant, d.FieldDelta(d.Dominant))
	return append(out, r.result(rule, msg, loc, sarif.PropertyBag{
		"run_id":               report.RunID,
		"delta":                d.Delta,
		"dominant_contributor": string(d.Dominant),
		"padding_delta":        d.PaddingDelta,
		"header_delta":         d.HeaderDelta,
		"content_delta":        d.ContentDelta,
		"unaccounted_delta":    d.UnaccountedDelta,
	}))
}

func (r *SARIFReporter) result(ruleID, text string, loc *sarif.Location, props sarif.PropertyBag) *sarif.Result {
	idx := r.ruleIndex[ruleID]
	return &sarif.Result{
		RuleID:     ruleID,
		RuleIndex:  &idx,
		Message:    &sarif.Message{Text: pString(text)},
		Level:      rules[idx].level,
		Locations:  []*sarif.Location{loc},
		Properties: &props,
	}
}

func (r *SARIFReporter) invocation(report *diagnostic.Report) *sarif.Invocation {
	inv := &sarif.Invocation{
		ExecutionSuccessful: true,
		StartTimeUTC:        pString(report.StartedAt.UTC().Format(time.RFC3339Nano)),
		EndTimeUTC:          pString(report.FinishedAt.UTC().Format(time.RFC3339Nano)),
	}
	for _, w := range report.Warnings {
		text := w.Message
		if w.Key != "" {
			text = w.Key + ": " + text
		}
		inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, &sarif.Notification{
			Message:    &sarif.Message{Text: pString(text)},
			Level:      sarif.LevelWarning,
			Descriptor: &sarif.ReportingDescriptorReference{ID: w.Code},
		})
	}
	return inv
}

func location(source, name, kind string) *sarif.Location {
	loc := &sarif.Location{
		LogicalLocations: []*sarif.LogicalLocation{{
			Name:               pString(name),
			FullyQualifiedName: pString(name),
			Kind:               pString(kind),
		}},
	}
	if source != "" {
		loc.PhysicalLocation = &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(source)},
		}
	}
	return loc
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Finalizing SARIF report", zap.Int("total_results", len(r.log.Runs[0].Results)))

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
