// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/measurediff/internal/diagnostic"
)

// Output formats accepted by New.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// Reporter defines the interface for writing diagnostic reports to an output.
type Reporter interface {
	// Write processes one diagnostic report.
	Write(report *diagnostic.Report) error
	// Close finalizes the output and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format. An empty output path or "stdout"
// writes to standard output.
func New(format, outputPath, toolVersion string) (Reporter, error) {
	switch format {
	case FormatText, FormatJSON, FormatSARIF:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return NewWithWriter(format, writer, toolVersion)
}

// NewWithWriter creates a reporter that takes ownership of writer.
func NewWithWriter(format string, writer io.WriteCloser, toolVersion string) (Reporter, error) {
	switch format {
	case FormatText:
		return NewTextReporter(writer), nil
	case FormatJSON:
		return NewJSONReporter(writer), nil
	case FormatSARIF:
		return NewSARIFReporter(writer, toolVersion), nil
	}
	writer.Close()
	return nil, fmt.Errorf("unsupported output format: %s", format)
}
