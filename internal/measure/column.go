// internal/measure/column.go
package measure

const (
	// DefaultEntrySpacing is the gap (logical px) between stacked column entries.
	DefaultEntrySpacing = 12.0
	// DefaultOverrunEpsilon absorbs sub-pixel rounding in the overrun check.
	DefaultOverrunEpsilon = 1.0
)

// ColumnEntry is one stacked entry of a column with its running bottom edge.
type ColumnEntry struct {
	Index  int     `json:"index"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	// Source records which layer the height came from ("measured" or "rendered").
	Source string `json:"source,omitempty"`
}

// ColumnOverrunReport is the aggregate overrun check for one rendered column.
type ColumnOverrunReport struct {
	ColumnIndex             int           `json:"column_index"`
	ColumnLogicalHeight     float64       `json:"column_logical_height"`
	CumulativeContentBottom float64       `json:"cumulative_content_bottom"`
	Overrun                 float64       `json:"overrun"`
	HasOverrun              bool          `json:"has_overrun"`
	Epsilon                 float64       `json:"epsilon"`
	Spacing                 float64       `json:"spacing"`
	FirstOverflow           int           `json:"first_overflow"`
	Entries                 []ColumnEntry `json:"entries"`
}

// CheckColumn stacks entry heights top to bottom with spacing between consecutive
// entries and reports whether the stack overruns the column. HasOverrun uses a strict
// inequality, so an overrun exactly equal to epsilon is not flagged.
func CheckColumn(columnLogicalHeight float64, entryHeights []float64, spacing, epsilon float64) ColumnOverrunReport {
	report := ColumnOverrunReport{
		ColumnLogicalHeight: columnLogicalHeight,
		Epsilon:             epsilon,
		Spacing:             spacing,
		FirstOverflow:       -1,
		Entries:             make([]ColumnEntry, 0, len(entryHeights)),
	}

	bottom := 0.0
	for i, h := range entryHeights {
		top := bottom
		if i > 0 {
			top += spacing
		}
		bottom = top + h
		report.Entries = append(report.Entries, ColumnEntry{Index: i, Height: h, Top: top, Bottom: bottom})
		if report.FirstOverflow == -1 && bottom-columnLogicalHeight > epsilon {
			report.FirstOverflow = i
		}
	}

	report.CumulativeContentBottom = bottom
	report.Overrun = bottom - columnLogicalHeight
	report.HasOverrun = report.Overrun > epsilon
	return report
}
