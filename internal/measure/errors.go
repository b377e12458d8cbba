// internal/measure/errors.go
package measure

import (
	"fmt"
	"strings"
)

// Layer names used in errors and reports.
const (
	LayerMeasurement = "measurement"
	LayerVisible     = "visible"
)

// MissingLayerError means a layer container is absent from the document. It is the
// only error that aborts a whole diagnostic run.
type MissingLayerError struct {
	Layer string
	// Locator is the selector or XPath that was used to look for the layer, if any.
	Locator string
}

func (e *MissingLayerError) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("%s layer not found (looked for %s)", e.Layer, e.Locator)
	}
	return fmt.Sprintf("%s layer not found", e.Layer)
}

// ScaleResolutionError means the visible layer's transform could not be turned into a
// scale factor. Callers fall back to the identity scale.
type ScaleResolutionError struct {
	Transform string
	Reason    string
	Err       error
}

func (e *ScaleResolutionError) Error() string {
	if e.Transform == "" {
		return fmt.Sprintf("scale resolution failed: %s", e.Reason)
	}
	return fmt.Sprintf("scale resolution failed for transform %q: %s", e.Transform, e.Reason)
}

func (e *ScaleResolutionError) Unwrap() error { return e.Err }

// EntryNotFoundError means no node matched a measurement key. Candidates lists the keys
// that exist for the same component, as a remediation hint.
type EntryNotFoundError struct {
	Key        MeasurementKey
	Layer      string
	Candidates []MeasurementKey
}

func (e *EntryNotFoundError) Error() string {
	msg := fmt.Sprintf("no %s layer entry for key %s", e.Layer, e.Key)
	if len(e.Candidates) == 0 {
		return msg + " (no keys recorded for this component)"
	}
	keys := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		keys[i] = c.String()
	}
	return msg + "; available for this component: " + strings.Join(keys, ", ")
}

// AmbiguousMatchError means a lookup matched more than one node: a structural lookup
// in the visible layer found several entries, or a key tags several measurement nodes.
// The first candidate is used for reporting, but the match is flagged.
type AmbiguousMatchError struct {
	Key MeasurementKey
	// Layer is LayerVisible when empty.
	Layer      string
	Candidates []string
}

func (e *AmbiguousMatchError) Error() string {
	if e.Layer == LayerMeasurement {
		return fmt.Sprintf("key %s tags %d measurement layer nodes: %s",
			e.Key, len(e.Candidates), strings.Join(e.Candidates, "; "))
	}
	return fmt.Sprintf("key %s matched %d visible entries: %s",
		e.Key, len(e.Candidates), strings.Join(e.Candidates, "; "))
}
