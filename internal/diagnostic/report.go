// internal/diagnostic/report.go
package diagnostic

import (
	"time"

	"github.com/xkilldash9x/measurediff/internal/measure"
)

// Status is the outcome of locating and comparing one component.
type Status string

const (
	StatusCompared  Status = "compared"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not-found"
)

// Warning codes carried in Report.Warnings.
const (
	WarnScaleFallback    = "scale-fallback"
	WarnScaleNonUniform  = "scale-non-uniform"
	WarnScaleNested      = "scale-nested"
	WarnMalformedKey     = "malformed-key"
	WarnKeyOutOfBounds   = "key-out-of-bounds"
	WarnDuplicateKey     = "duplicate-key"
	WarnMissingGeometry  = "missing-geometry"
	WarnEntryNotFound    = "entry-not-found"
	WarnAmbiguousMatch   = "ambiguous-match"
	WarnNoColumns        = "no-columns"
	WarnPredicateInvalid = "predicate-invalid"
)

// Warning is a recoverable issue surfaced alongside the results.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

// ScaleOutcome records how the visible layer's scale was resolved.
type ScaleOutcome struct {
	Factor    float64 `json:"factor"`
	Transform string  `json:"transform,omitempty"`
	// Source describes the element the transform was read from.
	Source   string `json:"source,omitempty"`
	Resolved bool   `json:"resolved"`
	Uniform  bool   `json:"uniform"`
	Error    string `json:"error,omitempty"`
}

// ComponentResult is the per-key outcome.
type ComponentResult struct {
	Key         measure.MeasurementKey        `json:"key"`
	Status      Status                        `json:"status"`
	Discrepancy *measure.ComponentDiscrepancy `json:"discrepancy,omitempty"`
	// Candidates lists every visible entry that matched when Status is ambiguous, or
	// the other keys of the same component when it is not-found.
	Candidates []string `json:"candidates,omitempty"`
	Column     int      `json:"column"`
	Entry      int      `json:"entry"`
	Error      string   `json:"error,omitempty"`

	Err error `json:"-"`
}

// Accuracy returns the classification, or "" when nothing was compared.
func (r ComponentResult) Accuracy() measure.Accuracy {
	if r.Discrepancy == nil {
		return ""
	}
	return r.Discrepancy.Accuracy
}

// Summary counts the outcomes of a run.
type Summary struct {
	Components      int `json:"components"`
	Accurate        int `json:"accurate"`
	OverEstimating  int `json:"over_estimating"`
	UnderEstimating int `json:"under_estimating"`
	Unmatched       int `json:"unmatched"`
	Ambiguous       int `json:"ambiguous"`
	Columns         int `json:"columns"`
	OverrunColumns  int `json:"overrun_columns"`
}

// Report is the complete result of one diagnostic run.
type Report struct {
	RunID      string                        `json:"run_id"`
	Source     string                        `json:"source,omitempty"`
	Title      string                        `json:"title,omitempty"`
	StartedAt  time.Time                     `json:"started_at"`
	FinishedAt time.Time                     `json:"finished_at"`
	Scale      ScaleOutcome                  `json:"scale"`
	Components []ComponentResult             `json:"components"`
	Columns    []measure.ColumnOverrunReport `json:"columns"`
	Warnings   []Warning                     `json:"warnings"`
	Summary    Summary                       `json:"summary"`
}

// Clean reports whether every component is accurate and no column overruns.
func (r *Report) Clean() bool {
	s := r.Summary
	return s.Accurate == s.Components && s.OverrunColumns == 0
}

func (r *Report) warn(code, key, message string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Key: key, Message: message})
}

func (r *Report) summarize() {
	s := Summary{Components: len(r.Components), Columns: len(r.Columns)}
	for _, c := range r.Components {
		switch c.Status {
		case StatusNotFound:
			s.Unmatched++
			continue
		case StatusAmbiguous:
			s.Ambiguous++
		}
		switch c.Accuracy() {
		case measure.AccuracyAccurate:
			s.Accurate++
		case measure.AccuracyOverEstimating:
			s.OverEstimating++
		case measure.AccuracyUnderEstimating:
			s.UnderEstimating++
		}
	}
	for _, col := range r.Columns {
		if col.HasOverrun {
			s.OverrunColumns++
		}
	}
	r.Summary = s
}
