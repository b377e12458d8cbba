// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/diagnostic"
	"github.com/xkilldash9x/measurediff/internal/observability"
)

// JSONReporter writes each report as an indented JSON document.
type JSONReporter struct {
	mu      sync.Mutex
	writer  io.WriteCloser
	encoder *json.Encoder
	logger  *zap.Logger
}

// NewJSONReporter creates a reporter that takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return &JSONReporter{
		writer:  writer,
		encoder: enc,
		logger:  observability.GetLogger().Named("json_reporter"),
	}
}

func (r *JSONReporter) Write(report *diagnostic.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report %s: %w", report.RunID, err)
	}
	r.logger.Debug("Wrote JSON report", zap.String("run_id", report.RunID))
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
